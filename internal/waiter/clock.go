package waiter

import (
	"sync"
	"time"
)

// Clock supplies the time source for polling.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// StepClock is a manual clock: After advances the clock by d and fires at once.
// It is safe for concurrent use, so a simulator and a Waiter can share one.
type StepClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStepClock returns a StepClock starting at start.
func NewStepClock(start time.Time) *StepClock {
	return &StepClock{now: start}
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *StepClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Advance(d)
	return ch
}

// Advance moves the clock forward and returns the new time.
func (c *StepClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}
