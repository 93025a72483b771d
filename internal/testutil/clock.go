package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is where NewStepClock starts.
var DefaultEpoch = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a deterministic wall clock for tests: every Now() returns
// the previous reading plus a fixed step, so successive writes always get
// strictly increasing timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	n     int64
}

// NewStepClock creates a clock whose first reading is DefaultEpoch and
// which advances one second per reading.
func NewStepClock() *StepClock {
	return NewStepClockAt(DefaultEpoch, time.Second)
}

// NewStepClockAt creates a clock starting at start, advancing by step.
func NewStepClockAt(start time.Time, step time.Duration) *StepClock {
	return &StepClock{start: start, step: step}
}

// Now returns the next reading.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Current returns the last reading without advancing, or the start time
// before the first call to Now.
func (c *StepClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == 0 {
		return c.start
	}
	return c.start.Add(time.Duration(c.n-1) * c.step)
}

// Reset rewinds the clock. After Reset(), Now returns the start time again.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
