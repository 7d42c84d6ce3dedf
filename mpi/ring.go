package mpi

import (
	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/wire"
)

// ringElementStride is the fake-payload element width ring_all_reduce
// models traffic in; only the byte count matters for the bandwidth
// property this collective exists to exercise (spec P8).
const ringElementStride = 1

// RingAllReduce models a ring scatter-reduce followed by a ring
// all-gather (spec.md's Open Question resolution: the two-phase
// interpretation is the only semantically coherent one). size elements
// are partitioned as evenly as possible across the group; each of
// group_size-1 rounds per phase exchanges one partition with a ring
// neighbor. Fake-payload only: no real values are combined, only bytes
// are moved, to model the collective's bandwidth cost.
func RingAllReduce(c *Communicator, size int) coro.Operation[struct{}] {
	ranks := c.SortedRanks()
	n := len(ranks)
	if n <= 1 {
		return coro.NewValue(struct{}{})
	}

	idx := -1
	for i, r := range ranks {
		if r == c.self {
			idx = i
			break
		}
	}
	if idx < 0 {
		out := coro.New[struct{}]()
		out.TerminateFailure(protocolFailure("mpi: ring_all_reduce: self rank not a member"))
		return out
	}
	next := ranks[(idx+1)%n]
	prev := ranks[(idx-1+n)%n]

	base := size / n
	remainder := size % n
	// sizes[p] is partition p's element count: the first remainder
	// partitions absorb the one extra element each, so no single
	// round's transfer is inflated by the whole remainder at once.
	sizes := make([]int, n)
	for p := 0; p < n; p++ {
		sizes[p] = base
		if p < remainder {
			sizes[p]++
		}
	}
	tag := wire.FakeTag{ElementStride: ringElementStride}

	out := coro.New[struct{}]()
	totalRounds := 2 * (n - 1)

	mod := func(v int) int { return ((v % n) + n) % n }

	var step func(round int)
	step = func(round int) {
		if round >= totalRounds {
			out.Terminate(struct{}{})
			return
		}
		// Scatter-reduce (rounds 0..n-2): round r forwards the partition
		// this rank received r rounds ago. All-gather (the remaining
		// n-1 rounds): forwards the partition finalized in the previous
		// phase. Standard ring-allreduce index rotation.
		var sendIdx, recvIdx int
		if round < n-1 {
			sendIdx = mod(idx - round)
			recvIdx = mod(idx - round - 1)
		} else {
			r := round - (n - 1)
			sendIdx = mod(idx - r + 1)
			recvIdx = mod(idx - r)
		}
		sendChunk := sizes[sendIdx]
		recvChunk := sizes[recvIdx]
		nextSock := c.SocketFor(next)
		prevSock := c.SocketFor(prev)
		sendOp := wire.SendFake(nextSock, tag, sendChunk)
		recvOp := wire.ReceiveFake(prevSock, tag, recvChunk)

		remaining := 2
		fail := func(f *coro.Failure) {
			if f != nil {
				out.TerminateFailure(f)
			}
		}
		advance := func(f *coro.Failure) {
			if f != nil {
				fail(f)
				return
			}
			remaining--
			if remaining == 0 {
				step(round + 1)
			}
		}
		sendOp.OnComplete(func(_ *struct{}, f *coro.Failure) { advance(f) })
		recvOp.OnComplete(func(_ *struct{}, f *coro.Failure) { advance(f) })
	}
	step(0)
	return out
}
