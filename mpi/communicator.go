// Package mpi implements the collective-communication runtime (C5): a
// Communicator owning a rank -> socket map, and the send/recv/gather/
// scatter/broadcast/barrier/reduce family of cooperative collectives
// built on top of it, plus leader election.
package mpi

import (
	"fmt"

	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/netsock"
)

// Reserved communicator ids, per spec.md §4.6.
const (
	IDError = 0
	IDNull  = 1
	IDWorld = 2
	IDSelf  = 3
)

// Communicator owns a rank -> socket map (including a loopback socket for
// self), a communicator id, a per-rank RNG, and a sorted rank vector used
// by ring algorithms.
type Communicator struct {
	id      uint32
	self    uint64
	table   *rankTable[*netsock.Socket]
	ranksCache []uint64
	rng     *RNG
}

// New builds a Communicator over sockets, which must include an entry
// for self (expected to be a loopback socket).
func New(id uint32, self uint64, sockets map[uint64]*netsock.Socket, rng *RNG) (*Communicator, error) {
	if _, ok := sockets[self]; !ok {
		return nil, fmt.Errorf("mpi: New(%d): missing loopback socket for self rank %d", id, self)
	}
	t := newRankTable[*netsock.Socket]()
	for r, s := range sockets {
		t.Set(r, s)
	}
	return &Communicator{id: id, self: self, table: t, ranksCache: t.Ranks(), rng: rng}, nil
}

// Duplicate copies the communicator handle under a new id, sharing the
// same underlying sockets (spec's duplicate(src, new_id)).
func (c *Communicator) Duplicate(newID uint32) *Communicator {
	return &Communicator{id: newID, self: c.self, table: c.table, ranksCache: c.ranksCache, rng: c.rng}
}

func (c *Communicator) ID() uint32   { return c.id }
func (c *Communicator) Rank() uint64 { return c.self }
func (c *Communicator) Size() int    { return c.table.Len() }

func (c *Communicator) String() string {
	return fmt.Sprintf("Communicator{id=%d rank=%d size=%d}", c.id, c.self, c.Size())
}

// SortedRanks returns member ranks in ascending order, matching the
// deterministic gather/reduce iteration order spec.md §4.5 requires.
func (c *Communicator) SortedRanks() []uint64 { return c.ranksCache }

// SocketFor returns the socket to rank, or nil if rank is not a member.
func (c *Communicator) SocketFor(rank uint64) *netsock.Socket {
	s, _ := c.table.Get(rank)
	return s
}

// Block/Unblock forward to every member socket.
func (c *Communicator) Block() {
	for _, s := range c.table.All() {
		s.Block()
	}
}

func (c *Communicator) Unblock() {
	for _, s := range c.table.All() {
		s.Unblock()
	}
}

// Close closes every member socket; any surfaced error is fatal per
// spec.md §4.5's lifecycle rule, so the first error is returned and the
// remaining sockets are still closed.
func (c *Communicator) Close() error {
	var firstErr error
	for _, s := range c.table.All() {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// TxBytes/RxBytes sum peer-socket counters, excluding the loopback.
func (c *Communicator) TxBytes() uint64 {
	var total uint64
	for r, s := range c.table.All() {
		if r == c.self {
			continue
		}
		total += s.TxBytes()
	}
	return total
}

func (c *Communicator) RxBytes() uint64 {
	var total uint64
	for r, s := range c.table.All() {
		if r == c.self {
			continue
		}
		total += s.RxBytes()
	}
	return total
}

func protocolFailure(msg string) *coro.Failure {
	return coro.NewFailure("ERROR_PROTOCOL", 0, fmt.Errorf("%s", msg))
}
