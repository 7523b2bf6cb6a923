package acquisition

import (
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// BurstInterval replaces the selected interval while burst mode is on.
const BurstInterval = 100 * time.Millisecond

// Intervals lists the sampling intervals an operator may choose.
var Intervals = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

var ErrInvalidInterval = errors.New("sampling interval must be one of 0.5, 1, 5, 10, 30 or 60 seconds")

// ValidateInterval checks d against Intervals.
func ValidateInterval(d time.Duration) error {
	for _, i := range Intervals {
		if d == i {
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidInterval, "got %s", d)
}

// ParseInterval accepts a bare number of seconds ("0.5") or a Go duration ("500ms").
func ParseInterval(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		d := time.Duration(math.Round(secs * float64(time.Second)))
		return d, ValidateInterval(d)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidInterval, "parsing %q", s)
	}
	return d, ValidateInterval(d)
}

// Status is a read-only view of the run state. StartedAt is zero until the
// first start.
type Status struct {
	Running   bool
	Burst     bool
	Interval  time.Duration
	StartedAt time.Time
}

func (s Status) String() string {
	if s.Running {
		return "Running"
	}
	return "Stopped"
}

// RunState is the sampling state machine: Stopped or Running, crossed with
// burst on or off. It only changes through Start, Stop and ToggleBurst, and
// through the scheduling calls the loop makes when it samples.
type RunState struct {
	running  bool
	burst    bool
	selected time.Duration
	interval time.Duration

	// startedAt is the first transition into Running; it is never reset.
	startedAt time.Time
	// anchor is the time of the first sample; elapsed time counts from here.
	anchor time.Time

	next       time.Time
	lastSample time.Time
	fresh      bool // no sample taken since the last Stopped->Running
}

func NewRunState(selected time.Duration) *RunState {
	return &RunState{selected: selected, interval: selected}
}

func (s *RunState) Status() Status {
	return Status{Running: s.running, Burst: s.burst, Interval: s.interval, StartedAt: s.startedAt}
}

func (s *RunState) Running() bool { return s.running }
func (s *RunState) Burst() bool { return s.burst }
func (s *RunState) Interval() time.Duration { return s.interval }
func (s *RunState) StartedAt() time.Time { return s.startedAt }
func (s *RunState) NextSampleAt() time.Time { return s.next }

// Start moves to Running. It reports false when already running.
func (s *RunState) Start(now time.Time) bool {
	if s.running {
		return false
	}
	s.running = true
	if s.startedAt.IsZero() {
		s.startedAt = now
	}
	s.fresh = true
	s.next = now
	return true
}

// Stop moves to Stopped. It reports false when already stopped.
func (s *RunState) Stop() bool {
	if !s.running {
		return false
	}
	s.running = false
	return true
}

// ToggleBurst flips burst mode and reschedules the next sample: entering
// burst samples at once, leaving it resumes the selected cadence from the
// last sample.
func (s *RunState) ToggleBurst(now time.Time) {
	s.burst = !s.burst
	if s.burst {
		s.interval = BurstInterval
	} else {
		s.interval = s.selected
	}

	if s.burst || s.fresh || s.lastSample.IsZero() {
		s.next = now
		return
	}
	s.next = s.lastSample.Add(s.interval)
}

// Due reports whether a sample should be taken at now.
func (s *RunState) Due(now time.Time) bool {
	return s.running && !now.Before(s.next)
}

// Sampled records a sample taken at now, advances the schedule by exactly one
// interval and returns the elapsed seconds for the sample.
// The anchor is kept across stop and restart, so elapsed never decreases but
// the first sample after a restart is not 0.
func (s *RunState) Sampled(now time.Time) float64 {
	if s.anchor.IsZero() {
		s.anchor = now
	}
	s.advance(now)
	s.lastSample = now
	return roundElapsed(now.Sub(s.anchor))
}

// Skipped advances the schedule without recording a sample.
func (s *RunState) Skipped(now time.Time) {
	s.advance(now)
}

func (s *RunState) advance(now time.Time) {
	if s.fresh {
		s.next = now.Add(s.interval)
		s.fresh = false
		return
	}
	s.next = s.next.Add(s.interval)
}

// roundElapsed rounds to hundredths of a second.
func roundElapsed(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
