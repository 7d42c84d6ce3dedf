package mpi

import (
	"fmt"

	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/wire"
)

// Send is point-to-point, typed, at-most-once-per-call.
func Send[T any](c *Communicator, dst uint64, v T) coro.Operation[struct{}] {
	sock := c.SocketFor(dst)
	if sock == nil {
		out := coro.New[struct{}]()
		out.TerminateFailure(protocolFailure(fmt.Sprintf("mpi: send: no socket for rank %d", dst)))
		return out
	}
	return wire.Writer[T](sock, v)
}

// Recv is point-to-point, typed, at-most-once-per-call.
func Recv[T any](c *Communicator, src uint64) coro.Operation[T] {
	sock := c.SocketFor(src)
	if sock == nil {
		out := coro.New[T]()
		out.TerminateFailure(protocolFailure(fmt.Sprintf("mpi: recv: no socket for rank %d", src)))
		return out
	}
	return wire.Reader[T](sock)
}

// SendRecv concurrently starts send and recv, awaits both, and returns
// the received value.
func SendRecv[T any](c *Communicator, dst uint64, vOut T, src uint64) coro.Operation[T] {
	out := coro.New[T]()
	sendOp := Send[T](c, dst, vOut)
	recvOp := Recv[T](c, src)

	var sendDone, recvDone bool
	var recvVal T
	check := func() {
		if sendDone && recvDone {
			out.Terminate(recvVal)
		}
	}
	sendOp.OnComplete(func(_ *struct{}, fail *coro.Failure) {
		if fail != nil {
			out.TerminateFailure(fail)
			return
		}
		sendDone = true
		check()
	})
	recvOp.OnComplete(func(v *T, fail *coro.Failure) {
		if fail != nil {
			out.TerminateFailure(fail)
			return
		}
		recvVal = *v
		recvDone = true
		check()
	})
	return out
}

// Gather: every rank sends v to root; at root, await one recv<T>(r') per
// member in ascending rank order; non-root ranks return an empty map.
func Gather[T any](c *Communicator, root uint64, v T) coro.Operation[map[uint64]T] {
	out := coro.New[map[uint64]T]()
	sendOp := Send[T](c, root, v)

	if c.self != root {
		sendOp.OnComplete(func(_ *struct{}, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			out.Terminate(map[uint64]T{})
		})
		return out
	}

	sendOp.OnComplete(func(_ *struct{}, fail *coro.Failure) {
		if fail != nil {
			out.TerminateFailure(fail)
		}
	})

	ranks := c.SortedRanks()
	result := make(map[uint64]T, len(ranks))
	var idx int
	var step func()
	step = func() {
		if idx >= len(ranks) {
			out.Terminate(result)
			return
		}
		r := ranks[idx]
		recvOp := Recv[T](c, r)
		recvOp.OnComplete(func(v *T, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			result[r] = *v
			idx++
			step()
		})
	}
	step()
	return out
}

// AllGather is equivalent to running gather(r', v) for every r'
// concurrently and returning the one targeted at self: every rank sends
// its v to every member and receives one value from each.
func AllGather[T any](c *Communicator, v T) coro.Operation[map[uint64]T] {
	out := coro.New[map[uint64]T]()
	ranks := c.SortedRanks()

	for _, r := range ranks {
		sendOp := Send[T](c, r, v)
		sendOp.OnComplete(func(_ *struct{}, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
			}
		})
	}

	result := make(map[uint64]T, len(ranks))
	var idx int
	var step func()
	step = func() {
		if idx >= len(ranks) {
			out.Terminate(result)
			return
		}
		r := ranks[idx]
		recvOp := Recv[T](c, r)
		recvOp.OnComplete(func(v *T, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			result[r] = *v
			idx++
			step()
		})
	}
	step()
	return out
}

// Scatter: non-root does one recv<T>(root); root sends map[r'] to every
// member in ascending order and returns its own map[self].
func Scatter[T any](c *Communicator, root uint64, m map[uint64]T) coro.Operation[T] {
	if c.self != root {
		return Recv[T](c, root)
	}
	out := coro.New[T]()
	ranks := c.SortedRanks()
	var idx int
	var step func()
	step = func() {
		if idx >= len(ranks) {
			v, ok := m[c.self]
			if !ok {
				out.TerminateFailure(protocolFailure("mpi: scatter: map missing self rank"))
				return
			}
			out.Terminate(v)
			return
		}
		r := ranks[idx]
		v, ok := m[r]
		if !ok {
			out.TerminateFailure(protocolFailure(fmt.Sprintf("mpi: scatter: map missing rank %d", r)))
			return
		}
		sendOp := Send[T](c, r, v)
		sendOp.OnComplete(func(_ *struct{}, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			idx++
			step()
		})
	}
	step()
	return out
}

// Broadcast: non-root does one recv<T>(root); root sends value to every
// member in ascending order and returns value.
func Broadcast[T any](c *Communicator, root uint64, value *T) coro.Operation[T] {
	if c.self != root {
		return Recv[T](c, root)
	}
	if value == nil {
		panic("mpi: Broadcast: root must supply a value")
	}
	out := coro.New[T]()
	ranks := c.SortedRanks()
	var idx int
	var step func()
	step = func() {
		if idx >= len(ranks) {
			out.Terminate(*value)
			return
		}
		r := ranks[idx]
		sendOp := Send[T](c, r, *value)
		sendOp.OnComplete(func(_ *struct{}, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			idx++
			step()
		})
	}
	step()
	return out
}

// Barrier: for every r' in parallel, run gather(r', self_rank) and await
// all, guaranteeing every rank has observed every other before returning.
func Barrier(c *Communicator) coro.Operation[struct{}] {
	out := coro.New[struct{}]()
	ranks := c.SortedRanks()
	if len(ranks) == 0 {
		out.Terminate(struct{}{})
		return out
	}
	remaining := len(ranks)
	for _, r := range ranks {
		op := Gather[uint64](c, r, c.self)
		op.OnComplete(func(_ *map[uint64]uint64, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			remaining--
			if remaining == 0 {
				out.Terminate(struct{}{})
			}
		})
	}
	return out
}

// AllToAll: for every r', start send(r', m[r']) and recv<T>(r'); await
// all and return the received map.
func AllToAll[T any](c *Communicator, m map[uint64]T) coro.Operation[map[uint64]T] {
	out := coro.New[map[uint64]T]()
	ranks := c.SortedRanks()
	if len(ranks) == 0 {
		out.Terminate(map[uint64]T{})
		return out
	}
	result := make(map[uint64]T, len(ranks))
	remaining := len(ranks) * 2
	for _, r := range ranks {
		v, ok := m[r]
		if !ok {
			out.TerminateFailure(protocolFailure(fmt.Sprintf("mpi: all_to_all: map missing rank %d", r)))
			return out
		}
		sendOp := Send[T](c, r, v)
		sendOp.OnComplete(func(_ *struct{}, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			remaining--
			if remaining == 0 {
				out.Terminate(result)
			}
		})
		rr := r
		recvOp := Recv[T](c, rr)
		recvOp.OnComplete(func(v *T, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			result[rr] = *v
			remaining--
			if remaining == 0 {
				out.Terminate(result)
			}
		})
	}
	return out
}

// Elect draws a 64-bit random vote per rank and runs AllGather; the
// elected root is the rank with the maximum (vote, rank) pair.
func Elect(c *Communicator) coro.Operation[uint64] {
	vote := c.rng.Uint64()
	out := coro.New[uint64]()
	gatherOp := AllGather[uint64](c, vote)
	gatherOp.OnComplete(func(m *map[uint64]uint64, fail *coro.Failure) {
		if fail != nil {
			out.TerminateFailure(fail)
			return
		}
		var bestRank, bestVote uint64
		first := true
		for _, r := range c.SortedRanks() {
			v := (*m)[r]
			if first || v > bestVote || (v == bestVote && r > bestRank) {
				bestVote, bestRank, first = v, r, false
			}
		}
		out.Terminate(bestRank)
	})
	return out
}
