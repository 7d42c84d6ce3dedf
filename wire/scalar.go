package wire

import (
	"reflect"

	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/netsock"
)

// registerScalar wires a fixed-size T (an integer or float) to raw
// host-byte-copy send/receive, matching spec.md §4.4's "fixed-size
// scalars use host byte-copy of sizeof(T)".
func registerScalar[T any](size int, decode func([]byte) T, encode func([]byte, T)) {
	Register[T](
		func(s *netsock.Socket) coro.Operation[T] {
			recv := s.Receive(size)
			return coro.Then(recv, func(b []byte) T {
				var zero T
				if len(b) < size {
					return zero
				}
				return decode(b)
			})
		},
		func(s *netsock.Socket, v T) coro.Operation[struct{}] {
			buf := make([]byte, size)
			encode(buf, v)
			send := s.Send(buf)
			return coro.Then(send, func(netsock.SendResult) struct{} { return struct{}{} })
		},
	)
	var zero T
	c := registry[reflect.TypeOf(zero)]
	c.decodeBytes = func(b []byte) any { return decode(b) }
	c.encodeBytes = func(b []byte, v any) { encode(b, v.(T)) }
}
