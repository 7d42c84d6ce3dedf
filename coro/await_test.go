package coro_test

import (
	"testing"

	. "github.com/glycerine/goconvey/convey"

	"github.com/glycerine/coronet/coro"
)

func TestOperationAwaiter(t *testing.T) {
	Convey("an Await over a not-yet-done Operation suspends and resumes with the result", t, func() {
		op := coro.New[int]()
		aw := coro.Await(op)
		So(aw.Ready(), ShouldBeFalse)

		woke := false
		aw.Suspend(func() { woke = true })
		So(woke, ShouldBeFalse)

		op.Terminate(42)
		So(woke, ShouldBeTrue)
		v, err := aw.Resume()
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 42)
	})

	Convey("an Await over an already-done Operation is immediately ready", t, func() {
		op := coro.NewValue(7)
		op.Terminate(7)
		aw := coro.Await(op)
		So(aw.Ready(), ShouldBeTrue)
		v, err := aw.Resume()
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 7)
	})

	Convey("an Await over a failed Operation propagates the failure on Resume", t, func() {
		op := coro.New[int]()
		aw := coro.Await(op)
		op.TerminateFailure(coro.NewFailure("ERROR_BADF", 0, nil))
		_, err := aw.Resume()
		So(err, ShouldNotBeNil)
	})
}

func TestImmediateAwaiter(t *testing.T) {
	Convey("Immediate(true) reports ready without suspending", t, func() {
		aw := coro.Immediate(true)
		So(aw.Ready(), ShouldBeTrue)
	})

	Convey("Immediate(false) parks the caller unconditionally on Suspend", t, func() {
		aw := coro.Immediate(false)
		So(aw.Ready(), ShouldBeFalse)
		woke := false
		aw.Suspend(func() { woke = true })
		So(woke, ShouldBeFalse)
	})
}

func TestConditionalAwaiter(t *testing.T) {
	Convey("a false condition resumes immediately", t, func() {
		aw := coro.Conditional(func() bool { return false })
		woke := false
		aw.Suspend(func() { woke = true })
		So(woke, ShouldBeTrue)
	})

	Convey("a true condition reparks instead of waking", t, func() {
		aw := coro.Conditional(func() bool { return true })
		woke := false
		aw.Suspend(func() { woke = true })
		So(woke, ShouldBeFalse)
	})
}

func TestHandoffAwaiter(t *testing.T) {
	Convey("a handoff awaiter delegates Suspend/Resume to whatever Next() currently returns", t, func() {
		op := coro.New[string]()
		h := &coro.HandoffAwaiter[string]{
			Next: func() coro.Awaiter[string] { return coro.Await(op) },
		}
		woke := false
		h.Suspend(func() { woke = true })
		So(woke, ShouldBeFalse)

		op.Terminate("done")
		So(woke, ShouldBeTrue)
		v, err := h.Resume()
		So(err, ShouldBeNil)
		So(v, ShouldEqual, "done")
	})
}
