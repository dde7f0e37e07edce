// Package recorder turns a live stream of HID and peripheral-control events
// into a timed script.
package recorder

import (
	"sync"
	"time"

	"github.com/hid-macro/hid-macro/internal/clock"
	"github.com/hid-macro/hid-macro/internal/script"
)

// CaptureFunc receives the event count and total delay after each capture.
type CaptureFunc func(events int, totalMillis int64)

// Recorder captures events while armed. Every captured event except the
// first one of a session is preceded by a delay holding the gap since the
// previous capture.
type Recorder struct {
	mu        sync.Mutex
	clock     clock.Clock
	armed     bool
	script    *script.Script
	lastEvent time.Time
	onCapture CaptureFunc
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the time source. The default is the real clock.
func WithClock(c clock.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// WithCaptureFunc registers an observer for the counters.
func WithCaptureFunc(fn CaptureFunc) Option {
	return func(r *Recorder) { r.onCapture = fn }
}

// New creates a disarmed Recorder with no script.
func New(opts ...Option) *Recorder {
	r := &Recorder{clock: clock.Real()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Arm starts a fresh recording session with an empty script.
func (r *Recorder) Arm() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.script = script.New()
	r.lastEvent = time.Time{}
	r.armed = true
}

// Disarm stops capturing. The captured script is kept.
func (r *Recorder) Disarm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = false
}

// Armed reports whether events are being captured.
func (r *Recorder) Armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

// Capture appends ev to the script when armed and is a no-op otherwise.
// It reports whether the event was recorded.
func (r *Recorder) Capture(ev script.Event) bool {
	if ev == nil {
		return false
	}

	r.mu.Lock()
	if !r.armed {
		r.mu.Unlock()
		return false
	}

	now := r.clock.Now()
	if !r.lastEvent.IsZero() {
		gap := now.Sub(r.lastEvent).Milliseconds()
		if gap < 0 {
			gap = 0
		}
		r.script.Append(script.Delay{Millis: gap})
	}
	r.lastEvent = now
	r.script.Append(ev)

	count, total, notify := r.script.Len(), r.script.TotalMillis(), r.onCapture
	r.mu.Unlock()

	if notify != nil {
		notify(count, total)
	}
	return true
}

// Script returns a copy of the script of the current or last session, or
// nil if the recorder was never armed.
func (r *Recorder) Script() *script.Script {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.script.Clone()
}

// Len returns the number of captured events, injected delays included.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.script.Len()
}

// TotalMillis returns the sum of the delays in the captured script.
func (r *Recorder) TotalMillis() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.script.TotalMillis()
}
