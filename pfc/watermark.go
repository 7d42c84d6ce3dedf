package pfc

import (
	"github.com/glycerine/coronet/internal/xlog"
	"github.com/glycerine/coronet/simhost"
)

var log = xlog.New("pfc")

// Frame is a PFC PAUSE/RESUME frame ready to send out an ingress device,
// addressed to the PFC multicast group (spec.md §4.7): "sent out of the
// incoming device of the triggering packet".
type Frame struct {
	Header    Header
	DestMAC   string
	OutDevice string
}

// Sender is the outbound side of a device: emitting a PFC frame out of
// the device that received the packet triggering the watermark breach.
type Sender interface {
	SendPFC(f Frame)
}

// Queue is one priority class's outbound queue depth, tracked by the
// watermark trigger.
type Queue struct {
	Priority int
	MaxSize  int
	length   int

	paused bool
}

// Len reports the queue's current length.
func (q *Queue) Len() int { return q.length }

// WatermarkTrigger is the per-outbound-device, per-priority-queue PAUSE/
// RESUME generator (spec.md §4.7). PauseThreshold and ResumeThreshold are
// fractions of a queue's MaxSize.
type WatermarkTrigger struct {
	PauseThreshold  float64
	ResumeThreshold float64

	queues [NumPriorities]*Queue
	sender Sender
	stats  *Stats
}

// NewWatermarkTrigger installs a trigger over sender with the given pause
// and resume thresholds (config.Default() supplies 0.9 and 0.5).
// Installation invariant per spec.md §4.7: at most NumPriorities queues.
func NewWatermarkTrigger(clock simhost.Clock, sender Sender, pauseThreshold, resumeThreshold float64) *WatermarkTrigger {
	return &WatermarkTrigger{
		PauseThreshold:  pauseThreshold,
		ResumeThreshold: resumeThreshold,
		sender:          sender,
		stats:           NewStats(clock),
	}
}

// Install attaches a priority's queue to the trigger. Installing more
// than NumPriorities queues is a driver misconfiguration; per spec.md
// §4.7 the driver logs and skips it rather than panicking.
func (w *WatermarkTrigger) Install(q *Queue) {
	if q.Priority < 0 || q.Priority >= NumPriorities {
		log.Warnf("refusing to install queue for out-of-range priority %d", q.Priority)
		return
	}
	w.queues[q.Priority] = q
}

// Stats returns the trigger's observability snapshot builder.
func (w *WatermarkTrigger) Stats() *Stats { return w.stats }

// Enqueue records one packet arriving on priority p's queue and, if the
// resulting length crosses the pause threshold, emits a PAUSE frame.
func (w *WatermarkTrigger) Enqueue(p int, ingressDevice string) {
	q := w.queues[p]
	if q == nil {
		return
	}
	q.length++
	if !q.paused && float64(q.length) >= w.PauseThreshold*float64(q.MaxSize) {
		q.paused = true
		w.emit(PauseAll([]int{p}), ingressDevice)
		w.stats.recordPause(p)
	}
}

// Dequeue records one packet leaving priority p's queue and, if the
// resulting length has fallen to the resume threshold, emits a RESUME
// frame.
func (w *WatermarkTrigger) Dequeue(p int, ingressDevice string) {
	q := w.queues[p]
	if q == nil || q.length == 0 {
		return
	}
	q.length--
	if q.paused && float64(q.length) <= w.ResumeThreshold*float64(q.MaxSize) {
		q.paused = false
		w.emit(ResumeAll([]int{p}), ingressDevice)
		w.stats.recordResume(p)
	}
}

func (w *WatermarkTrigger) emit(h Header, ingressDevice string) {
	if w.sender == nil {
		return
	}
	w.sender.SendPFC(Frame{Header: h, DestMAC: MulticastMAC, OutDevice: ingressDevice})
}
