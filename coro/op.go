// Package coro implements the cooperative operation runtime that every
// other Coronet subsystem is written against: a lazily-resumed, shared,
// reference-counted handle to a deferred computation.
//
// There is exactly one goroutine driving simulated time (the host
// simulator's event loop); Operation itself never spawns a goroutine and
// takes no lock. Completion is a one-shot event: callbacks registered via
// OnComplete fire exactly once, synchronously, in the same goroutine that
// resolves the operation.
package coro

import (
	"fmt"
)

// Failure is a captured coroutine body failure or a propagated error,
// consumed exactly once by the first Result() call that observes it.
type Failure struct {
	Code string // e.g. ERROR_SHUTDOWN, ERROR_BADF, ERROR_AGAIN, ERROR_PROTOCOL
	Peer uint64
	Err  error
}

func (f *Failure) Error() string {
	if f == nil {
		return "<nil coro.Failure>"
	}
	return fmt.Sprintf("%s (peer %d): %v", f.Code, f.Peer, f.Err)
}

// NewFailure builds a symbolic, peer-tagged failure.
func NewFailure(code string, peer uint64, err error) *Failure {
	return &Failure{Code: code, Peer: peer, Err: err}
}

// body is the lazy resumable computation backing an Operation. Resume
// returns true once the operation is done; make_operation's placeholder
// bodies never make progress on their own and rely on Terminate.
type body[R any] interface {
	Resume() bool
}

// state is the single shared record behind every Operation[R] holder.
// Copies of Operation are refcount bumps onto the same *state.
type state[R any] struct {
	done    bool
	result  R
	failure *Failure
	// consumed marks the failure as already surfaced to a Result() caller;
	// spec says the failure is *consumed* on read, exactly once.
	consumed bool

	callbacks []func(*R, *Failure)
	refcount  int

	body body[R]
}

// Operation is a handle to a deferred computation producing a value of
// type R (or void, for Operation[struct{}]). Multiple holders observe the
// same completion; see spec §3 (Operation⟨R⟩) for the invariants enforced
// here: once done, result/failure are frozen, callbacks registered after
// done fire synchronously in registration order among themselves, and
// storage is released when done && refcount == 0.
type Operation[R any] struct {
	s *state[R]
}

// pollBody backs make_operation(predicate, provider): polled once per
// Resume until predicate is true, then resolves via provider.
type pollBody[R any] struct {
	op        *Operation[R]
	predicate func() bool
	provider  func() R
}

func (p *pollBody[R]) Resume() bool {
	if p.predicate() {
		p.op.resolve(p.provider(), nil)
		return true
	}
	return false
}

// manualBody never makes progress; only Terminate resolves it. Used by
// make_operation[R]() and make_operation(value).
type manualBody[R any] struct{}

func (manualBody[R]) Resume() bool { return false }

// New wraps a pre-suspended, manually-terminated placeholder Operation
// resolving to the zero value of R unless terminated first.
func New[R any]() Operation[R] {
	var zero R
	return newWithBody[R](manualBody[R]{}, zero, false)
}

// NewValue wraps a pre-suspended placeholder Operation seeded with value,
// still requiring an explicit Terminate to actually complete.
func NewValue[R any](value R) Operation[R] {
	return newWithBody[R](manualBody[R]{}, value, false)
}

// NewPolling builds an Operation that resumes provider() the first wake
// at which predicate() is true.
func NewPolling[R any](predicate func() bool, provider func() R) Operation[R] {
	var zero R
	op := newWithBody[R](nil, zero, false)
	op.s.body = &pollBody[R]{op: &op, predicate: predicate, provider: provider}
	if op.s.body.Resume() {
		// predicate was already true at construction: drive to completion
		// eagerly, matching "entering a coroutine body runs it eagerly up
		// to its first suspension point."
	}
	return op
}

func newWithBody[R any](b body[R], seed R, done bool) Operation[R] {
	s := &state[R]{
		body:     b,
		result:   seed,
		done:     done,
		refcount: 1,
	}
	return Operation[R]{s: s}
}

// Clone bumps the refcount and returns a new holder observing the same
// completion. Equivalent to spec's "copy of Operation is a refcount bump."
func (op Operation[R]) Clone() Operation[R] {
	if op.s != nil {
		op.s.refcount++
	}
	return op
}

// Release drops this holder. When the last holder drops after Done(),
// the body is freed (state becomes eligible for GC).
func (op Operation[R]) Release() {
	if op.s == nil {
		return
	}
	op.s.refcount--
	if op.s.refcount <= 0 && op.s.done {
		op.s.body = nil
	}
}

// Done reports whether the operation has resolved.
func (op Operation[R]) Done() bool {
	return op.s != nil && op.s.done
}

// Resume steps the coroutine body once. Returns Done() after stepping.
func (op Operation[R]) Resume() bool {
	if op.s.done {
		return true
	}
	if op.s.body != nil && op.s.body.Resume() {
		// body.Resume() calls resolve() itself on completion.
	}
	return op.s.done
}

// Result returns the resolved value, or propagates (and consumes) the
// captured failure. Called before Done(), it returns the zero value and
// an error; callers should check Done() or observe completion via
// OnComplete first.
func (op Operation[R]) Result() (R, error) {
	var zero R
	if op.s == nil || !op.s.done {
		return zero, fmt.Errorf("coro: Result() called before Done()")
	}
	if op.s.failure != nil && !op.s.consumed {
		op.s.consumed = true
		return op.s.result, op.s.failure
	}
	return op.s.result, nil
}

// Terminate externally forces resolution to v. Idempotent: a no-op if
// already done (spec P1: the first terminate wins).
func (op Operation[R]) Terminate(v R) {
	op.resolve(v, nil)
}

// TerminateFailure externally forces resolution with a captured failure.
func (op Operation[R]) TerminateFailure(f *Failure) {
	var zero R
	op.resolve(zero, f)
}

func (op Operation[R]) resolve(v R, f *Failure) {
	s := op.s
	if s.done {
		return // idempotent: P1.
	}
	s.result = v
	s.failure = f
	s.done = true
	s.body = nil // drive to completion: no dangling suspension remains.

	// P2: callbacks fire exactly once, in registration order.
	cbs := s.callbacks
	s.callbacks = nil
	for _, cb := range cbs {
		cb(&s.result, s.failure)
	}
}

// OnComplete registers cb to run once the operation resolves. If already
// done, cb runs synchronously, immediately, right here.
func (op Operation[R]) OnComplete(cb func(*R, *Failure)) {
	s := op.s
	if s.done {
		cb(&s.result, s.failure)
		return
	}
	s.callbacks = append(s.callbacks, cb)
}

// Equal reports identity equality: the two Operation values share the
// same underlying state.
func (op Operation[R]) Equal(other Operation[R]) bool {
	return op.s == other.s
}

// Then chains a transform, returning a new Operation that resolves once
// op resolves, applying f to the value (or propagating op's failure).
func Then[R, R2 any](op Operation[R], f func(R) R2) Operation[R2] {
	out := New[R2]()
	op.OnComplete(func(v *R, fail *Failure) {
		if fail != nil {
			out.TerminateFailure(fail)
			return
		}
		out.Terminate(f(*v))
	})
	return out
}
