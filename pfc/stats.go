package pfc

import (
	"time"

	tdigest "github.com/caio/go-tdigest"

	"github.com/glycerine/coronet/simhost"
)

// Stats is a per-device observability snapshot: pause/resume frame
// counts and a streaming quantile digest of pause durations. Uses
// go-tdigest for latency quantiles, the same way it tracks round-trip
// latency elsewhere. Durations are measured against the simulated
// clock, never wall time (spec.md §1 Non-goals: "wall-clock timers ...
// all time is simulated").
type Stats struct {
	clock  simhost.Clock
	digest *tdigest.TDigest

	pauseCount  [NumPriorities]uint64
	resumeCount [NumPriorities]uint64
	pausedAt    [NumPriorities]time.Time
}

// NewStats builds a digest at a fixed compression setting.
func NewStats(clock simhost.Clock) *Stats {
	d, err := tdigest.New(tdigest.Compression(100))
	if err != nil {
		// Compression(100) is a fixed, always-valid constant; New only
		// errors on invalid options.
		panic(err)
	}
	return &Stats{clock: clock, digest: d}
}

func (s *Stats) recordPause(p int) {
	s.pauseCount[p]++
	s.pausedAt[p] = s.clock.Now()
}

func (s *Stats) recordResume(p int) {
	s.resumeCount[p]++
	if !s.pausedAt[p].IsZero() {
		dur := s.clock.Now().Sub(s.pausedAt[p])
		_ = s.digest.Add(float64(dur))
		s.pausedAt[p] = time.Time{}
	}
}

// PauseCount reports how many PAUSE frames priority p has triggered.
func (s *Stats) PauseCount(p int) uint64 { return s.pauseCount[p] }

// ResumeCount reports how many RESUME frames priority p has triggered.
func (s *Stats) ResumeCount(p int) uint64 { return s.resumeCount[p] }

// Quantile returns the q-quantile (0..1) of observed pause durations, in
// nanoseconds.
func (s *Stats) Quantile(q float64) float64 {
	return s.digest.Quantile(q)
}
