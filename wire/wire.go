// Package wire implements the typed serialization protocol (C4): a
// registry of type descriptors that know how to read and write themselves
// over a netsock.Socket as coro.Operation-returning traits, plus a fake
// payload mode for bandwidth-only traffic generation. Grounded on the
// teacher's greencodec.go (a registry of encode/decode functions keyed by
// reflect.Type, dispatched through the same coroutine style as the rest of
// the runtime).
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"lukechampine.com/uint128"

	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/netsock"
)

// Codec is a type descriptor: it knows how to read and write values of one
// Go type over a socket, and optionally how many bytes one element takes
// when the type is batch-capable (stride known without per-element
// state), enabling the vector fast path spec.md §4.4 describes.
type Codec struct {
	Stride int // 0 means "not batch-capable"
	read   func(s *netsock.Socket) coro.Operation[any]
	write  func(s *netsock.Socket, v any) coro.Operation[struct{}]

	// decodeBytes/encodeBytes give the batch vector fast path direct
	// access to a strided element's raw encoding without going through
	// a socket round trip per element.
	decodeBytes func([]byte) any
	encodeBytes func([]byte, any)
}

var registry = map[reflect.Type]*Codec{}

// RegisterStride declares that T's on-wire representation is a fixed n
// bytes with no per-element state, letting vector codecs of T use a
// single batched socket transfer instead of one read/write per element.
func RegisterStride[T any](n int) {
	var zero T
	t := reflect.TypeOf(zero)
	c, ok := registry[t]
	if !ok {
		panic(fmt.Sprintf("wire: RegisterStride called before Register for %v", t))
	}
	c.Stride = n
}

// Register installs read/write functions for T, keyed by T's reflect.Type
// so the registry can be consulted generically from container codecs.
func Register[T any](read func(*netsock.Socket) coro.Operation[T], write func(*netsock.Socket, T) coro.Operation[struct{}]) {
	var zero T
	t := reflect.TypeOf(zero)
	registry[t] = &Codec{
		read: func(s *netsock.Socket) coro.Operation[any] {
			return coro.Then(read(s), func(v T) any { return v })
		},
		write: func(s *netsock.Socket, v any) coro.Operation[struct{}] {
			return write(s, v.(T))
		},
	}
}

func lookup[T any]() *Codec {
	var zero T
	t := reflect.TypeOf(zero)
	c, ok := registry[t]
	if !ok {
		panic(fmt.Sprintf("wire: no codec registered for %v", t))
	}
	return c
}

// Reader reads a T from s.
func Reader[T any](s *netsock.Socket) coro.Operation[T] {
	c := lookup[T]()
	return coro.Then(c.read(s), func(v any) T { return v.(T) })
}

// Writer writes v to s.
func Writer[T any](s *netsock.Socket, v T) coro.Operation[struct{}] {
	c := lookup[T]()
	return c.write(s, v)
}

func init() {
	registerScalar[int32](4, func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) },
		func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) })
	registerScalar[uint32](4, binary.LittleEndian.Uint32, binary.LittleEndian.PutUint32)
	registerScalar[int64](8, func(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) },
		func(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) })
	registerScalar[uint64](8, binary.LittleEndian.Uint64, binary.LittleEndian.PutUint64)
	registerScalar[float64](8, func(b []byte) float64 {
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}, func(b []byte, v float64) {
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	})
	registerScalar[uint128.Uint128](16, func(b []byte) uint128.Uint128 {
		return uint128.Uint128{
			Lo: binary.LittleEndian.Uint64(b[0:8]),
			Hi: binary.LittleEndian.Uint64(b[8:16]),
		}
	}, func(b []byte, v uint128.Uint128) {
		binary.LittleEndian.PutUint64(b[0:8], v.Lo)
		binary.LittleEndian.PutUint64(b[8:16], v.Hi)
	})
	RegisterStride[int32](4)
	RegisterStride[uint32](4)
	RegisterStride[int64](8)
	RegisterStride[uint64](8)
	RegisterStride[float64](8)
	RegisterStride[uint128.Uint128](16)
}
