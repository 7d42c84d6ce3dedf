package wire

import (
	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/netsock"
)

// ReadVector reads a length-prefixed (uint32 count) vector of T. When T is
// batch-capable (a stride was registered), the whole payload after the
// count is read as one socket transfer; otherwise elements are read one
// at a time, per spec.md §4.4.
func ReadVector[T any](s *netsock.Socket) coro.Operation[[]T] {
	c := lookup[T]()
	out := coro.New[[]T]()
	countOp := Reader[uint32](s)
	countOp.OnComplete(func(countP *uint32, fail *coro.Failure) {
		if fail != nil {
			out.TerminateFailure(fail)
			return
		}
		count := int(*countP)
		if count == 0 {
			out.Terminate(nil)
			return
		}
		if c.Stride > 0 {
			readBatch[T](s, count, c, out)
			return
		}
		readElements[T](s, count, out)
	})
	return out
}

func readBatch[T any](s *netsock.Socket, count int, c *Codec, out coro.Operation[[]T]) {
	recv := s.Receive(count * c.Stride)
	recv.OnComplete(func(bp *[]byte, fail *coro.Failure) {
		if fail != nil {
			out.TerminateFailure(fail)
			return
		}
		b := *bp
		vals := make([]T, count)
		for i := 0; i < count; i++ {
			vals[i] = c.decodeBytes(b[i*c.Stride : (i+1)*c.Stride]).(T)
		}
		out.Terminate(vals)
	})
}

func readElements[T any](s *netsock.Socket, count int, out coro.Operation[[]T]) {
	vals := make([]T, count)
	var step func(i int)
	step = func(i int) {
		if i >= count {
			out.Terminate(vals)
			return
		}
		elem := Reader[T](s)
		elem.OnComplete(func(v *T, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			vals[i] = *v
			step(i + 1)
		})
	}
	step(0)
}

// WriteVector writes a length-prefixed vector of T, using the same
// batch-vs-element-loop split as ReadVector.
func WriteVector[T any](s *netsock.Socket, vals []T) coro.Operation[struct{}] {
	c := lookup[T]()
	out := coro.New[struct{}]()
	countOp := Writer[uint32](s, uint32(len(vals)))
	countOp.OnComplete(func(_ *struct{}, fail *coro.Failure) {
		if fail != nil {
			out.TerminateFailure(fail)
			return
		}
		if len(vals) == 0 {
			out.Terminate(struct{}{})
			return
		}
		if c.Stride > 0 {
			buf := make([]byte, len(vals)*c.Stride)
			for i, v := range vals {
				c.encodeBytes(buf[i*c.Stride:(i+1)*c.Stride], v)
			}
			send := s.Send(buf)
			send.OnComplete(func(_ *netsock.SendResult, fail *coro.Failure) {
				if fail != nil {
					out.TerminateFailure(fail)
					return
				}
				out.Terminate(struct{}{})
			})
			return
		}
		writeElements(s, vals, out)
	})
	return out
}

func writeElements[T any](s *netsock.Socket, vals []T, out coro.Operation[struct{}]) {
	var step func(i int)
	step = func(i int) {
		if i >= len(vals) {
			out.Terminate(struct{}{})
			return
		}
		w := Writer[T](s, vals[i])
		w.OnComplete(func(_ *struct{}, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			step(i + 1)
		})
	}
	step(0)
}
