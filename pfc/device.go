package pfc

import (
	"github.com/glycerine/idem"

	"github.com/glycerine/coronet/simhost"
)

// Device bundles one link's WatermarkTrigger (outbound) and PauseTimer
// (inbound) under a single cooperative lifecycle, guarded by an
// idem.NewHalter()-style start/stop idiom shared with other per-circuit
// run loops.
type Device struct {
	Name    string
	Trigger *WatermarkTrigger
	Timer   *PauseTimer

	halt *idem.Halter
}

// NewDevice wires a trigger and timer under one named device.
func NewDevice(name string, clock simhost.Clock, sender Sender, pauseThreshold, resumeThreshold float64, bitsPerSecond float64, onWake func(p int, paused bool)) *Device {
	d := &Device{
		Name:    name,
		Trigger: NewWatermarkTrigger(clock, sender, pauseThreshold, resumeThreshold),
		halt:    idem.NewHalter(),
	}
	d.Timer = NewPauseTimerNanos(clock, QuantaNanos(bitsPerSecond), onWake)
	return d
}

// Halter exposes the device's cooperative shutdown signal.
func (d *Device) Halter() *idem.Halter { return d.halt }

// Receive feeds an inbound PFC frame to the device's pause-timer state
// machine, unless the device has been stopped.
func (d *Device) Receive(h Header) {
	if d.halt.ReqStop.IsClosed() {
		return
	}
	d.Timer.OnFrame(h)
}

// Stop halts the device: subsequent Receive calls are ignored, via the
// usual ReqStop.Close()-then-ignore shutdown idiom.
func (d *Device) Stop() { d.halt.ReqStop.Close() }
