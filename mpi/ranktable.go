package mpi

import (
	"fmt"
	"iter"

	rb "github.com/glycerine/rbtree"
)

// rankTable is a deterministic rank -> V map backed by a red-black tree,
// giving Communicator a reproducible iteration order over its member
// ranks (the sorted rank vector ring algorithms need), specialized to a
// uint64 rank key.
type rankTable[V any] struct {
	tree *rb.Tree
}

type rankEntry[V any] struct {
	rank uint64
	val  V
}

func newRankTable[V any]() *rankTable[V] {
	return &rankTable[V]{
		tree: rb.NewTree(func(a, b rb.Item) int {
			ar := a.(*rankEntry[V]).rank
			br := b.(*rankEntry[V]).rank
			switch {
			case ar < br:
				return -1
			case ar > br:
				return 1
			default:
				return 0
			}
		}),
	}
}

func (t *rankTable[V]) Len() int { return t.tree.Len() }

func (t *rankTable[V]) Set(rank uint64, v V) {
	query := &rankEntry[V]{rank: rank, val: v}
	it, found := t.tree.FindGE_isEqual(query)
	if found {
		it.Item().(*rankEntry[V]).val = v
		return
	}
	t.tree.InsertGetIt(query)
}

func (t *rankTable[V]) Get(rank uint64) (V, bool) {
	var zero V
	query := &rankEntry[V]{rank: rank}
	it, found := t.tree.FindGE_isEqual(query)
	if !found {
		return zero, false
	}
	return it.Item().(*rankEntry[V]).val, true
}

// Ranks returns member ranks in ascending order.
func (t *rankTable[V]) Ranks() []uint64 {
	out := make([]uint64, 0, t.tree.Len())
	for it := t.tree.Min(); !it.Limit(); it = it.Next() {
		out = append(out, it.Item().(*rankEntry[V]).rank)
	}
	return out
}

// All iterates entries in ascending rank order.
func (t *rankTable[V]) All() iter.Seq2[uint64, V] {
	return func(yield func(uint64, V) bool) {
		for it := t.tree.Min(); !it.Limit(); it = it.Next() {
			e := it.Item().(*rankEntry[V])
			if !yield(e.rank, e.val) {
				return
			}
		}
	}
}

func (t *rankTable[V]) String() string {
	s := "rankTable{"
	first := true
	for r, v := range t.All() {
		if !first {
			s += ", "
		}
		first = false
		s += fmt.Sprintf("%d:%v", r, v)
	}
	return s + "}"
}
