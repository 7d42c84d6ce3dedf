package pfc_test

import (
	"testing"
	"time"

	. "github.com/glycerine/goconvey/convey"

	"github.com/glycerine/coronet/pfc"
	"github.com/glycerine/coronet/simhost/refhost"
)

type recordingSender struct {
	frames []pfc.Frame
}

func (r *recordingSender) SendPFC(f pfc.Frame) { r.frames = append(r.frames, f) }

func TestHeaderRoundTrip(t *testing.T) {
	Convey("a PAUSE header round-trips through Encode/DecodeHeader", t, func() {
		h := pfc.PauseAll([]int{0, 3, 7})
		buf := h.Encode()
		So(len(buf), ShouldEqual, pfc.FrameSize)
		got := pfc.DecodeHeader(buf)
		So(got.Opcode, ShouldEqual, pfc.Opcode)
		So(got.HasPriority(0), ShouldBeTrue)
		So(got.HasPriority(3), ShouldBeTrue)
		So(got.HasPriority(7), ShouldBeTrue)
		So(got.HasPriority(1), ShouldBeFalse)
		So(got.PauseTime[3], ShouldEqual, 0xFFFF)
	})
}

func TestBTHRoundTrip(t *testing.T) {
	Convey("a BTH round-trips its bit-packed fields independently", t, func() {
		b := pfc.BTH{
			Opcode:               pfc.OpRCSendOnly,
			SolicitedEvent:       true,
			PadCount:             2,
			TransportHeaderVer:   1,
			PartitionKey:         0xBEEF,
			ECN:                  3,
			DestQPN:              0x00FFAA55,
			AckRequest:           true,
			PacketSequenceNumber: 0x00123456,
		}
		buf := b.Encode()
		So(len(buf), ShouldEqual, pfc.BTHSize)
		got := pfc.DecodeBTH(buf)
		So(got.Opcode, ShouldEqual, b.Opcode)
		So(got.SolicitedEvent, ShouldBeTrue)
		So(got.PadCount, ShouldEqual, uint8(2))
		So(got.TransportHeaderVer, ShouldEqual, uint8(1))
		So(got.PartitionKey, ShouldEqual, uint16(0xBEEF))
		So(got.ECN, ShouldEqual, uint8(3))
		So(got.DestQPN, ShouldEqual, uint32(0x00FFAA55))
		So(got.AckRequest, ShouldBeTrue)
		So(got.PacketSequenceNumber, ShouldEqual, uint32(0x00123456))
	})

	Convey("a set ack-request bit never corrupts the QPN's low byte", t, func() {
		b := pfc.BTH{DestQPN: 0x0000FFFF, AckRequest: true}
		got := pfc.DecodeBTH(b.Encode())
		So(got.DestQPN, ShouldEqual, uint32(0x0000FFFF))
		So(got.AckRequest, ShouldBeTrue)
	})
}

func TestWatermarkHysteresis(t *testing.T) {
	Convey("a queue pauses at the pause threshold and resumes at the resume threshold, not before", t, func() {
		clock := refhost.New(time.Unix(0, 0))
		sender := &recordingSender{}
		w := pfc.NewWatermarkTrigger(clock, sender, 0.9, 0.5)
		q := &pfc.Queue{Priority: 2, MaxSize: 10}
		w.Install(q)

		for i := 0; i < 8; i++ {
			w.Enqueue(2, "eth0")
		}
		So(len(sender.frames), ShouldEqual, 0)

		w.Enqueue(2, "eth0") // length 9 >= 0.9*10
		So(len(sender.frames), ShouldEqual, 1)
		So(sender.frames[0].Header.HasPriority(2), ShouldBeTrue)
		So(sender.frames[0].Header.PauseTime[2], ShouldEqual, uint16(0xFFFF))

		for i := 0; i < 3; i++ {
			w.Dequeue(2, "eth0")
		}
		So(len(sender.frames), ShouldEqual, 1) // length 6, still above resume threshold 5

		w.Dequeue(2, "eth0") // length 5 <= 0.5*10
		So(len(sender.frames), ShouldEqual, 2)
		So(sender.frames[1].Header.PauseTime[2], ShouldEqual, uint16(0x0000))

		So(w.Stats().PauseCount(2), ShouldEqual, uint64(1))
		So(w.Stats().ResumeCount(2), ShouldEqual, uint64(1))
	})

	Convey("dequeues below the resume threshold do not re-trigger RESUME", t, func() {
		clock := refhost.New(time.Unix(0, 0))
		sender := &recordingSender{}
		w := pfc.NewWatermarkTrigger(clock, sender, 0.9, 0.5)
		q := &pfc.Queue{Priority: 0, MaxSize: 10}
		w.Install(q)
		for i := 0; i < 9; i++ {
			w.Enqueue(0, "eth0")
		}
		w.Dequeue(0, "eth0")
		w.Dequeue(0, "eth0")
		w.Dequeue(0, "eth0")
		w.Dequeue(0, "eth0")
		So(len(sender.frames), ShouldEqual, 2) // 1 pause + 1 resume
		w.Dequeue(0, "eth0")
		w.Dequeue(0, "eth0")
		So(len(sender.frames), ShouldEqual, 2) // already resumed, no repeat frames
	})
}

func TestPauseTimerDecay(t *testing.T) {
	Convey("remaining quanta decays with elapsed time and resumes the queue", t, func() {
		clock := refhost.New(time.Unix(0, 0))
		quanta := 10 * time.Nanosecond
		paused := map[int]bool{}
		pt := pfc.NewPauseTimer(clock, quanta, func(p int, isPaused bool) {
			paused[p] = isPaused
		})

		h := pfc.PauseAll([]int{1})
		h.PauseTime[1] = 5 // 5 quanta = 50ns
		pt.OnFrame(h)
		So(paused[1], ShouldBeTrue)
		So(pt.Remaining[1], ShouldEqual, int64(5))

		clock.Advance() // fires the rescheduled wake at +50ns if nothing else is queued
		// Advance only pops one event; since Reschedule fired a wake at
		// the minimum remaining (5 quanta = 50ns), that single Advance
		// lands exactly there.
		So(clock.Now().Sub(time.Unix(0, 0)), ShouldEqual, 50*time.Nanosecond)
		So(pt.Remaining[1], ShouldEqual, int64(0))
		So(paused[1], ShouldBeFalse)
	})

	Convey("a second PAUSE frame arriving mid-decay overwrites remaining, not adds to it", t, func() {
		clock := refhost.New(time.Unix(0, 0))
		quanta := 10 * time.Nanosecond
		paused := map[int]bool{}
		pt := pfc.NewPauseTimer(clock, quanta, func(p int, isPaused bool) {
			paused[p] = isPaused
		})

		h1 := pfc.PauseAll([]int{0})
		h1.PauseTime[0] = 10
		pt.OnFrame(h1)

		clock.Schedule(35*time.Nanosecond, func() {
			h2 := pfc.PauseAll([]int{0})
			h2.PauseTime[0] = 2
			pt.OnFrame(h2)
			So(pt.Remaining[0], ShouldEqual, int64(2))
		})
		clock.RunAll()

		So(pt.Remaining[0], ShouldEqual, int64(0))
		So(paused[0], ShouldBeFalse)
	})
}

func TestQuantaFor(t *testing.T) {
	Convey("QuantaNanos keeps the sub-nanosecond remainder at 100 Gb/s", t, func() {
		n := pfc.QuantaNanos(100e9) // 100 Gb/s
		So(n, ShouldEqual, 5.12)
	})

	Convey("QuantaFor rounds to the nearest whole nanosecond", t, func() {
		q := pfc.QuantaFor(100e9)
		So(q, ShouldEqual, 5*time.Nanosecond)
	})

	Convey("a PauseTimer built from QuantaNanos resumes at exactly 5.12us for 1000 quanta, scenario S7", t, func() {
		clock := refhost.New(time.Unix(0, 0))
		paused := map[int]bool{}
		pt := pfc.NewPauseTimerNanos(clock, pfc.QuantaNanos(100e9), func(p int, isPaused bool) {
			paused[p] = isPaused
		})

		h := pfc.PauseAll([]int{0})
		h.PauseTime[0] = 1000
		pt.OnFrame(h)
		So(paused[0], ShouldBeTrue)

		clock.Advance()
		So(clock.Now().Sub(time.Unix(0, 0)), ShouldEqual, 5120*time.Nanosecond)
		So(paused[0], ShouldBeFalse)
	})
}

func TestDeviceStopIgnoresLateFrames(t *testing.T) {
	Convey("a stopped device drops inbound PFC frames instead of pausing", t, func() {
		clock := refhost.New(time.Unix(0, 0))
		sender := &recordingSender{}
		paused := map[int]bool{}
		dev := pfc.NewDevice("eth0", clock, sender, 0.9, 0.5, 100e9, func(p int, isPaused bool) {
			paused[p] = isPaused
		})

		h := pfc.PauseAll([]int{4})
		h.PauseTime[4] = 3
		dev.Receive(h)
		So(paused[4], ShouldBeTrue)

		dev.Stop()
		h2 := pfc.PauseAll([]int{5})
		dev.Receive(h2)
		So(paused[5], ShouldBeFalse) // never delivered
		So(dev.Timer.Remaining[5], ShouldEqual, int64(0))
	})
}
