// Package mpiapp implements the MPI application lifecycle (C6): mesh
// bring-up from rank/address tables, the WORLD/SELF communicator
// registry, a sequential run loop over user functions, and a compute
// simulator standing in for modeled CPU work. Follows an
// accept-if-lower/connect-if-higher bring-up pattern over per-rank peer
// bookkeeping.
package mpiapp

import (
	"fmt"
	"sort"

	"github.com/glycerine/ipaddr"
)

// AddrTable is the rank <-> address bijection given at construction
// (spec.md §3, "Rank & Address Tables (C6)").
type AddrTable struct {
	byRank map[uint64]string
	byAddr map[string]uint64
}

// NewAddrTable validates that every address is well-formed and that the
// mapping is a bijection.
func NewAddrTable(addrs map[uint64]string) (*AddrTable, error) {
	t := &AddrTable{
		byRank: make(map[uint64]string, len(addrs)),
		byAddr: make(map[string]uint64, len(addrs)),
	}
	for rank, addr := range addrs {
		_, ip, _, _, _, err := ipaddr.ParseURLAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("mpiapp: rank %d: invalid address %q: %w", rank, addr, err)
		}
		if len(ip) == 0 {
			return nil, fmt.Errorf("mpiapp: rank %d: address %q has no host", rank, addr)
		}
		if existing, dup := t.byAddr[addr]; dup {
			return nil, fmt.Errorf("mpiapp: address %q used by both rank %d and rank %d", addr, existing, rank)
		}
		t.byRank[rank] = addr
		t.byAddr[addr] = rank
	}
	return t, nil
}

func (t *AddrTable) AddrOf(rank uint64) (string, bool) {
	a, ok := t.byRank[rank]
	return a, ok
}

func (t *AddrTable) RankOf(addr string) (uint64, bool) {
	r, ok := t.byAddr[addr]
	return r, ok
}

// Ranks returns every member rank in ascending order.
func (t *AddrTable) Ranks() []uint64 {
	out := make([]uint64, 0, len(t.byRank))
	for r := range t.byRank {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t *AddrTable) Len() int { return len(t.byRank) }
