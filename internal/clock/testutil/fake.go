// Package testutil provides a virtual clock for tests.
package testutil

import (
	"sync"
	"time"
)

// FakeClock is a manually driven clock. After fires immediately and moves
// virtual time forward by the requested duration, so playback tests run
// without sleeping while still observing every suspension.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration

	// OnAfter, if set, is called with each requested duration before the
	// channel is returned. Tests use it to cancel playback mid-walk.
	OnAfter func(d time.Duration)
}

// NewFakeClock returns a FakeClock starting at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current virtual time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves virtual time forward.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// After records d, advances virtual time by d and returns a channel that
// already holds the new time.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	now := c.now
	hook := c.OnAfter
	c.mu.Unlock()

	if hook != nil {
		hook(d)
	}

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Sleeps returns every duration passed to After, in order.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}
