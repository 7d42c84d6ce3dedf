package coro_test

import (
	"testing"

	. "github.com/glycerine/goconvey/convey"

	"github.com/glycerine/coronet/coro"
)

func TestTerminateIdempotence(t *testing.T) {
	Convey("a second Terminate after the first is a no-op: the first value wins", t, func() {
		op := coro.New[int]()
		op.Terminate(5)
		op.Terminate(9)
		So(op.Done(), ShouldBeTrue)
		v, err := op.Result()
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 5)
	})

	Convey("TerminateFailure after Terminate does not overwrite the resolved value", t, func() {
		op := coro.New[int]()
		op.Terminate(3)
		op.TerminateFailure(coro.NewFailure("ERROR_BADF", 0, nil))
		v, err := op.Result()
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 3)
	})

	Convey("Terminate after TerminateFailure does not clear the captured failure", t, func() {
		op := coro.New[int]()
		op.TerminateFailure(coro.NewFailure("ERROR_AGAIN", 1, nil))
		op.Terminate(11)
		_, err := op.Result()
		So(err, ShouldNotBeNil)
	})

	Convey("a failure is consumed exactly once: the second Result() call returns nil error", t, func() {
		op := coro.New[int]()
		op.TerminateFailure(coro.NewFailure("ERROR_PROTOCOL", 2, nil))
		_, err1 := op.Result()
		So(err1, ShouldNotBeNil)
		_, err2 := op.Result()
		So(err2, ShouldBeNil)
	})
}

func TestOnCompleteOrdering(t *testing.T) {
	Convey("multiple OnComplete callbacks fire exactly once each, in registration order", t, func() {
		op := coro.New[int]()
		var order []int
		counts := map[int]int{}
		for i := 0; i < 3; i++ {
			i := i
			op.OnComplete(func(_ *int, _ *coro.Failure) {
				order = append(order, i)
				counts[i]++
			})
		}
		op.Terminate(1)
		So(order, ShouldResemble, []int{0, 1, 2})
		So(counts[0], ShouldEqual, 1)
		So(counts[1], ShouldEqual, 1)
		So(counts[2], ShouldEqual, 1)
	})

	Convey("a callback registered after Done() runs synchronously, immediately", t, func() {
		op := coro.New[int]()
		op.Terminate(4)
		ran := false
		var got int
		op.OnComplete(func(v *int, fail *coro.Failure) {
			ran = true
			got = *v
			So(fail, ShouldBeNil)
		})
		So(ran, ShouldBeTrue)
		So(got, ShouldEqual, 4)
	})

	Convey("callbacks registered before and after Done() both fire exactly once", t, func() {
		op := coro.New[string]()
		var order []string
		op.OnComplete(func(_ *string, _ *coro.Failure) { order = append(order, "before") })
		op.Terminate("x")
		op.OnComplete(func(_ *string, _ *coro.Failure) { order = append(order, "after") })
		So(order, ShouldResemble, []string{"before", "after"})
	})
}

func TestCloneReleaseRefcount(t *testing.T) {
	Convey("a Clone observes the same completion as the original", t, func() {
		op := coro.New[int]()
		clone := op.Clone()
		So(clone.Equal(op), ShouldBeTrue)

		var seenByClone int
		clone.OnComplete(func(v *int, _ *coro.Failure) { seenByClone = *v })
		op.Terminate(17)
		So(clone.Done(), ShouldBeTrue)
		So(seenByClone, ShouldEqual, 17)
	})

	Convey("Release before Done() does not resolve or corrupt the shared state", t, func() {
		op := coro.New[int]()
		clone := op.Clone()
		clone.Release()
		So(op.Done(), ShouldBeFalse)
		op.Terminate(8)
		v, err := op.Result()
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 8)
	})

	Convey("Release after Done() with an outstanding clone leaves the surviving holder's result intact", t, func() {
		op := coro.New[int]()
		clone := op.Clone()
		op.Terminate(21)
		op.Release()
		v, err := clone.Result()
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 21)
	})

	Convey("releasing every holder after Done() is safe and does not panic on further reads", t, func() {
		op := coro.New[int]()
		clone := op.Clone()
		op.Terminate(2)
		op.Release()
		clone.Release()
		v, err := clone.Result()
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 2)
	})
}

func TestResultBeforeDone(t *testing.T) {
	Convey("Result() called before Done() returns an error instead of the zero value", t, func() {
		op := coro.New[int]()
		v, err := op.Result()
		So(err, ShouldNotBeNil)
		So(v, ShouldEqual, 0)
	})
}
