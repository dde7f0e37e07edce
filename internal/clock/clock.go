// Package clock abstracts wall-clock time so that recording gaps and
// playback delays can run against virtual time in tests.
package clock

import "time"

// Clock is the time source used by the recorder and the player.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
