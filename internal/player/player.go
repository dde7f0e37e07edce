// Package player replays scripts against a remote target with the original
// inter-event timing.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hid-macro/hid-macro/internal/clock"
	"github.com/hid-macro/hid-macro/internal/script"
)

// Transport is the live channel for fire-and-forget input events. Send must
// not wait for any acknowledgment from the target.
type Transport interface {
	Send(ctx context.Context, ev script.Event) error
}

// Sink executes must-complete actions (print, atx_button, gpio_switch,
// gpio_pulse). Do returns once the target has accepted or rejected the
// action. An oversized print is reported with an error wrapping
// ErrPayloadTooLarge.
type Sink interface {
	Do(ctx context.Context, ev script.Event) error
}

// Progress is published before each step.
type Progress struct {
	Pass            int   // zero-based loop pass
	Index           int   // index of the step about to run
	Remaining       int   // events left including the current one
	RemainingMillis int64 // delay time left in this pass
}

// Player walks a script one step at a time. A Player is not safe for
// concurrent Run calls.
type Player struct {
	Transport Transport
	Sink      Sink
	Clock     clock.Clock
	Loop      bool

	// LoopFunc, if set, is consulted at the end of every pass instead of
	// Loop, so looping can be switched off while a walk is running.
	LoopFunc func() bool

	// OnProgress, if set, receives counters before every step.
	OnProgress func(Progress)

	// Trace, if non-nil, receives one line per dispatched event.
	Trace io.Writer

	Logger *slog.Logger
}

// Result summarizes a finished walk.
type Result struct {
	Passes     int // completed passes over the whole script
	Dispatched int // events handed to the transport or sink

	// Index is where the last pass ended: steps before it ran, the step at
	// Index is the one that failed or was never started.
	Index int
}

// Run replays s until it ends, ctx is cancelled or a dispatch fails.
//
// Cancellation returns ctx.Err() and never retracts work already handed
// off: a must-complete request in flight runs to completion on a context
// detached from ctx, after which no further step is taken.
func (p *Player) Run(ctx context.Context, s *script.Script) (res Result, err error) {
	if s.Len() == 0 {
		return res, ErrEmptyScript
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	events := s.Events
	total := s.TotalMillis()
	index := 0
	var elapsed int64
	defer func() { res.Index = index }()

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if index >= len(events) {
			res.Passes++
			if !p.looping() {
				return res, nil
			}
			index, elapsed = 0, 0
			// Yield between passes so a loop without delays stays cancellable.
			if err := sleep(ctx, clk, script.Delay{}); err != nil {
				return res, err
			}
			continue
		}

		if p.OnProgress != nil {
			p.OnProgress(Progress{
				Pass:            res.Passes,
				Index:           index,
				Remaining:       len(events) - index,
				RemainingMillis: total - elapsed,
			})
		}

		ev := events[index]
		delivery, err := script.DeliveryOf(ev)
		if err != nil {
			return res, &DispatchError{Index: index, Event: ev, Err: err}
		}

		switch delivery {
		case script.Timed:
			d := ev.(script.Delay)
			elapsed += d.Millis
			index++
			if err := sleep(ctx, clk, d); err != nil {
				return res, err
			}

		case script.MustComplete:
			if p.Sink == nil {
				return res, &DispatchError{Index: index, Event: ev, Err: ErrNoSink}
			}
			p.trace(index, ev)
			logger.Debug("dispatching request", "index", index, "kind", ev.Kind())
			if err := p.Sink.Do(context.WithoutCancel(ctx), ev); err != nil {
				return res, &DispatchError{Index: index, Event: ev, Err: err}
			}
			res.Dispatched++
			index++

		case script.FireAndForget:
			if p.Transport == nil {
				return res, &DispatchError{Index: index, Event: ev, Err: ErrNoTransport}
			}
			p.trace(index, ev)
			logger.Debug("sending event", "index", index, "kind", ev.Kind())
			if err := p.Transport.Send(ctx, ev); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return res, ctxErr
				}
				return res, &DispatchError{Index: index, Event: ev, Err: err}
			}
			res.Dispatched++
			index++

		default:
			return res, &DispatchError{Index: index, Event: ev, Err: fmt.Errorf("unknown delivery %v", delivery)}
		}
	}
}

func (p *Player) looping() bool {
	if p.LoopFunc != nil {
		return p.LoopFunc()
	}
	return p.Loop
}

func (p *Player) trace(index int, ev script.Event) {
	if p.Trace != nil {
		WriteTraceOutput(p.Trace, index, ev)
	}
}

// sleep suspends for the delay or until ctx is done.
func sleep(ctx context.Context, clk clock.Clock, d script.Delay) error {
	select {
	case <-clk.After(d.Duration()):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TraceFromEnv returns os.Stderr when tracing is enabled in the environment.
func TraceFromEnv() io.Writer {
	if IsTraceEnabled(os.Getenv(TraceEnvVar)) {
		return os.Stderr
	}
	return nil
}
