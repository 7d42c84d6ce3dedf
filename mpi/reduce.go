package mpi

import (
	"fmt"

	"github.com/glycerine/coronet/coro"
)

// Reducer bundles an identity element and an associative binary operator,
// per spec.md §4.5's "extensible for custom types by providing an
// identity element and an associative binary operator". Built-in folds
// accumulate left-associatively over the gathered values in ascending
// rank order.
type Reducer[T any] struct {
	Identity T
	Combine  func(a, b T) T
	// NoIdentity marks reducers with no true identity element (Max, Min):
	// the fold must seed from the first gathered value instead of
	// Identity's unset zero value.
	NoIdentity bool
}

// Number is the constraint built-in numeric reducers are defined over.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Integer is the constraint the bitwise reducers require.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func Sum[T Number]() Reducer[T] {
	return Reducer[T]{Identity: 0, Combine: func(a, b T) T { return a + b }}
}

func Product[T Number]() Reducer[T] {
	return Reducer[T]{Identity: 1, Combine: func(a, b T) T { return a * b }}
}

func Max[T Number]() Reducer[T] {
	return Reducer[T]{NoIdentity: true, Combine: func(a, b T) T {
		if b > a {
			return b
		}
		return a
	}}
}

func Min[T Number]() Reducer[T] {
	return Reducer[T]{NoIdentity: true, Combine: func(a, b T) T {
		if b < a {
			return b
		}
		return a
	}}
}

func BitwiseAnd[T Integer]() Reducer[T] {
	return Reducer[T]{Identity: ^T(0), Combine: func(a, b T) T { return a & b }}
}

func BitwiseOr[T Integer]() Reducer[T] {
	return Reducer[T]{Identity: 0, Combine: func(a, b T) T { return a | b }}
}

func BitwiseXor[T Integer]() Reducer[T] {
	return Reducer[T]{Identity: 0, Combine: func(a, b T) T { return a ^ b }}
}

func LogicalAnd() Reducer[bool] {
	return Reducer[bool]{Identity: true, Combine: func(a, b bool) bool { return a && b }}
}

func LogicalOr() Reducer[bool] {
	return Reducer[bool]{Identity: false, Combine: func(a, b bool) bool { return a || b }}
}

func LogicalXor() Reducer[bool] {
	return Reducer[bool]{Identity: false, Combine: func(a, b bool) bool { return a != b }}
}

// Reduce: gather(root, v), then at root fold across the gathered values in
// ascending rank order; non-root ranks return nil.
func Reduce[T any](c *Communicator, root uint64, v T, red Reducer[T]) coro.Operation[*T] {
	out := coro.New[*T]()
	gatherOp := Gather[T](c, root, v)
	gatherOp.OnComplete(func(m *map[uint64]T, fail *coro.Failure) {
		if fail != nil {
			out.TerminateFailure(fail)
			return
		}
		if c.self != root {
			out.Terminate(nil)
			return
		}
		ranks := c.SortedRanks()
		if red.NoIdentity && len(ranks) == 0 {
			out.TerminateFailure(protocolFailure("mpi: reduce: no identity element and no members to fold"))
			return
		}
		var acc T
		start := 0
		if red.NoIdentity {
			acc = (*m)[ranks[0]]
			start = 1
		} else {
			acc = red.Identity
		}
		for _, r := range ranks[start:] {
			acc = red.Combine(acc, (*m)[r])
		}
		out.Terminate(&acc)
	})
	return out
}

// ReduceScatter runs reduce(r', m[r']) concurrently for every member and
// returns the self result.
func ReduceScatter[T any](c *Communicator, m map[uint64]T, red Reducer[T]) coro.Operation[T] {
	out := coro.New[T]()
	ranks := c.SortedRanks()
	if len(ranks) == 0 {
		var zero T
		out.Terminate(zero)
		return out
	}
	var selfResult *T
	remaining := len(ranks)
	for _, r := range ranks {
		v, ok := m[r]
		if !ok {
			out.TerminateFailure(protocolFailure(fmt.Sprintf("mpi: reduce_scatter: map missing rank %d", r)))
			return out
		}
		rr := r
		redOp := Reduce[T](c, rr, v, red)
		redOp.OnComplete(func(res **T, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			if rr == c.self {
				selfResult = *res
			}
			remaining--
			if remaining == 0 {
				if selfResult == nil {
					out.TerminateFailure(protocolFailure("mpi: reduce_scatter: no result computed for self rank"))
					return
				}
				out.Terminate(*selfResult)
			}
		})
	}
	return out
}

// AllReduce elects a root, reduces to it, then broadcasts the result so
// every rank returns the same value.
func AllReduce[T any](c *Communicator, v T, red Reducer[T]) coro.Operation[T] {
	out := coro.New[T]()
	electOp := Elect(c)
	electOp.OnComplete(func(rootP *uint64, fail *coro.Failure) {
		if fail != nil {
			out.TerminateFailure(fail)
			return
		}
		root := *rootP
		reduceOp := Reduce[T](c, root, v, red)
		reduceOp.OnComplete(func(resP **T, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			var bp *T
			if c.self == root {
				bp = *resP
			}
			bcastOp := Broadcast[T](c, root, bp)
			bcastOp.OnComplete(func(v2 *T, fail *coro.Failure) {
				if fail != nil {
					out.TerminateFailure(fail)
					return
				}
				out.Terminate(*v2)
			})
		})
	})
	return out
}
