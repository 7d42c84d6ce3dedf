// Package refhost is a minimal in-memory discrete-event clock: no real
// concurrency, no wall-clock sleeping, just a time-ordered heap of pending
// callbacks that a test driver Advance()s. It exists so the rest of
// Coronet, written against simhost.Clock, is self-testable without a real
// ns-3-style host simulator.
//
// The heap is a container/heap-based array with the earliest time at
// the root; a cancelled timer is taken out with heap.Remove rather than
// a full Push/Pop round trip.
package refhost

import (
	"container/heap"
	"fmt"
	"time"
)

type timerItem struct {
	when  time.Time
	cb    func()
	index int
	fired bool
}

type timerHeap []*timerItem

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	// earliest time at the root; heap.Pop swaps the root to the tail,
	// where Pop reads it.
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	item := x.(*timerItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Host is a single-threaded discrete-event clock. Not goroutine safe: all
// calls (including callbacks it invokes) are expected to happen from the
// one control-flow thread driving the simulation, matching spec §5's
// "strictly single-threaded cooperative" scheduling model.
type Host struct {
	now time.Time
	hea timerHeap
}

// New creates a Host starting at t0.
func New(t0 time.Time) *Host {
	return &Host{now: t0}
}

func (h *Host) Now() time.Time { return h.now }

func (h *Host) Schedule(delay time.Duration, cb func()) (cancel func()) {
	if delay < 0 {
		delay = 0
	}
	item := &timerItem{when: h.now.Add(delay), cb: cb}
	heap.Push(&h.hea, item)
	return func() {
		if item.fired || item.index < 0 {
			return
		}
		heap.Remove(&h.hea, item.index)
	}
}

func (h *Host) ScheduleNow(cb func()) {
	h.Schedule(0, cb)
}

// Advance pops the earliest scheduled callback, moves h.now to its time,
// runs it, and reports whether anything ran.
// Repeated calls drain same-tick chains (a callback that schedules
// another same-tick callback is picked up by the next Advance).
func (h *Host) Advance() bool {
	if len(h.hea) == 0 {
		return false
	}
	item := heap.Pop(&h.hea).(*timerItem)
	item.fired = true
	if item.when.After(h.now) {
		h.now = item.when
	}
	item.cb()
	return true
}

// RunAll drains the event queue entirely, guarding against runaway
// same-tick scheduling loops with a generous iteration ceiling.
func (h *Host) RunAll() {
	const guard = 10_000_000
	for range guard {
		if !h.Advance() {
			return
		}
	}
	panic(fmt.Sprintf("refhost.RunAll: exceeded %d events without draining; suspect an infinite same-tick reschedule loop", guard))
}

// Pending reports how many timers remain scheduled.
func (h *Host) Pending() int { return len(h.hea) }
