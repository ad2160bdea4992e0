package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first instant a StepClock reports unless told
// otherwise: 2023-11-14T22:13:20Z.
var DefaultEpoch = time.Unix(1700000000, 0).UTC()

// StepClock is a deterministic wall clock for tests.
//
// Every call to Now advances the clock by a fixed step, so the same sequence
// of calls always produces the same times. A clock with a zero step is frozen
// and moves only through Advance, which lets scripts state time explicitly.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewStepClock creates a clock whose first Now returns start.
//
// A zero start means DefaultEpoch.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	return &StepClock{start: start, step: step}
}

// Now returns the current instant and advances the clock by one step.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Peek returns the instant the next Now will report, without advancing.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.calls) * c.step)
}

// Advance moves the clock forward by d without counting a call.
func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = c.start.Add(d)
}

// Reset rewinds the clock to its start.
//
// Used for test reuse. After Reset, Now returns the start again.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
