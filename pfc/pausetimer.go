package pfc

import (
	"math"
	"time"

	"github.com/glycerine/coronet/simhost"
)

// PauseTimer is per-device pause-timer state (spec.md §3, §4.7): the
// quanta (transmission time of 512 bits at the device's data rate), the
// last update time, and one remaining pause duration per priority.
type PauseTimer struct {
	// Quanta is the nearest-nanosecond rendering of the quanta, for
	// display; all decay/reschedule arithmetic uses quantaNanos, which
	// keeps the sub-nanosecond remainder a whole-Duration quanta would
	// truncate away.
	Quanta      time.Duration
	LastUpdated time.Time
	Remaining   [NumPriorities]int64

	quantaNanos float64
	clock       simhost.Clock
	cancel      func()
	onWake      func(p int, paused bool)
}

// QuantaNanos computes the bit_time(512) quanta from a nominal data rate
// in bits per second, in nanoseconds, without rounding to a whole
// nanosecond. At 100 Gb/s this is 5.12, not the 5 a time.Duration would
// hold.
func QuantaNanos(bitsPerSecond float64) float64 {
	return 512.0 / bitsPerSecond * 1e9
}

// QuantaFor is QuantaNanos rounded to the nearest time.Duration, for
// callers that only need an approximate quanta for display or a data
// rate whose bit_time(512) already lands on a whole nanosecond. Timer
// construction should prefer NewPauseTimerNanos(clock, QuantaNanos(...),
// ...) to avoid this rounding.
func QuantaFor(bitsPerSecond float64) time.Duration {
	return time.Duration(math.Round(QuantaNanos(bitsPerSecond)))
}

// NewPauseTimer creates a timer at now with a zero remaining vector, at
// whole-nanosecond quanta precision.
func NewPauseTimer(clock simhost.Clock, quanta time.Duration, onWake func(p int, paused bool)) *PauseTimer {
	return newPauseTimer(clock, float64(quanta), onWake)
}

// NewPauseTimerNanos is like NewPauseTimer but takes quanta at
// sub-nanosecond precision, for data rates whose bit_time(512) doesn't
// land on a whole nanosecond (100 Gb/s => 5.12ns).
func NewPauseTimerNanos(clock simhost.Clock, quantaNanos float64, onWake func(p int, paused bool)) *PauseTimer {
	return newPauseTimer(clock, quantaNanos, onWake)
}

func newPauseTimer(clock simhost.Clock, quantaNanos float64, onWake func(p int, paused bool)) *PauseTimer {
	return &PauseTimer{
		Quanta:      time.Duration(math.Round(quantaNanos)),
		quantaNanos: quantaNanos,
		LastUpdated: clock.Now(),
		clock:       clock,
		onWake:      onWake,
	}
}

// Update decays every priority's remaining quanta by elapsed time since
// LastUpdated, saturating at zero, and cancels any scheduled wake.
func (t *PauseTimer) Update() {
	now := t.clock.Now()
	elapsed := now.Sub(t.LastUpdated)
	if elapsed > 0 && t.quantaNanos > 0 {
		decay := int64(float64(elapsed) / t.quantaNanos)
		for p := range t.Remaining {
			if t.Remaining[p] > 0 {
				t.Remaining[p] -= decay
				if t.Remaining[p] < 0 {
					t.Remaining[p] = 0
				}
			}
		}
	}
	t.LastUpdated = now
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Apply overwrites remaining[p] for every priority set in h's mask.
func (t *PauseTimer) Apply(h Header) {
	for p := 0; p < NumPriorities; p++ {
		if h.HasPriority(p) {
			t.Remaining[p] = int64(h.PauseTime[p])
		}
	}
}

// Process pauses or resumes each priority's queue according to whether
// its remaining quanta is positive.
func (t *PauseTimer) Process() {
	if t.onWake == nil {
		return
	}
	for p := 0; p < NumPriorities; p++ {
		t.onWake(p, t.Remaining[p] > 0)
	}
}

// Reschedule arranges a wake at the earliest priority's expiry, if any
// priority is still paused. The wake handler re-enters Update+Process+
// Reschedule, per spec.md §4.7.
func (t *PauseTimer) Reschedule() {
	min := int64(-1)
	for _, r := range t.Remaining {
		if r > 0 && (min < 0 || r < min) {
			min = r
		}
	}
	if min < 0 {
		return
	}
	delay := time.Duration(math.Round(float64(min) * t.quantaNanos))
	t.cancel = t.clock.Schedule(delay, func() {
		t.Update()
		t.Process()
		t.Reschedule()
	})
}

// OnFrame is the full receipt path for an inbound PFC frame: decay,
// overwrite, apply, reschedule (spec.md §4.7's pause-timer state
// machine).
func (t *PauseTimer) OnFrame(h Header) {
	t.Update()
	t.Apply(h)
	t.Process()
	t.Reschedule()
}
