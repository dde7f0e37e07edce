// Package testutil provides recording doubles for the player interfaces.
package testutil

import (
	"context"
	"sync"

	"github.com/hid-macro/hid-macro/internal/script"
)

// FakeTransport records every event sent over the live channel.
type FakeTransport struct {
	mu   sync.Mutex
	Sent []script.Event

	// SendFunc, if set, runs after the event is recorded and supplies the
	// return value.
	SendFunc func(ctx context.Context, ev script.Event) error
}

// Send implements player.Transport.
func (f *FakeTransport) Send(ctx context.Context, ev script.Event) error {
	f.mu.Lock()
	f.Sent = append(f.Sent, ev)
	fn := f.SendFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, ev)
	}
	return nil
}

// Events returns a copy of the sent events.
func (f *FakeTransport) Events() []script.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]script.Event, len(f.Sent))
	copy(out, f.Sent)
	return out
}

// FakeSink records every must-complete request.
type FakeSink struct {
	mu       sync.Mutex
	Requests []script.Event

	// DoFunc, if set, supplies the result of each request.
	DoFunc func(ctx context.Context, ev script.Event) error
}

// Do implements player.Sink.
func (f *FakeSink) Do(ctx context.Context, ev script.Event) error {
	f.mu.Lock()
	f.Requests = append(f.Requests, ev)
	fn := f.DoFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, ev)
	}
	return nil
}

// Events returns a copy of the requested events.
func (f *FakeSink) Events() []script.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]script.Event, len(f.Requests))
	copy(out, f.Requests)
	return out
}
