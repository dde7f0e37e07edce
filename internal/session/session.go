// Package session owns the recorder/player state of one KVM client: the
// current mode, the current script and the live channels. Recording and
// playback are mutually exclusive; entering one mode stops the other.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/hid-macro/hid-macro/internal/clock"
	"github.com/hid-macro/hid-macro/internal/player"
	"github.com/hid-macro/hid-macro/internal/recorder"
	"github.com/hid-macro/hid-macro/internal/script"
)

// Mode is the current activity of a Session.
type Mode int

const (
	Idle Mode = iota
	Recording
	Playing
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// StateError is returned when an operation is not allowed in the current
// mode. The session is left exactly as it was.
type StateError struct {
	Op     string
	Mode   Mode
	Reason string
}

func (e *StateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s while %s: %s", e.Op, e.Mode, e.Reason)
	}
	return fmt.Sprintf("cannot %s while %s", e.Op, e.Mode)
}

// IsStateError reports whether err is a refused operation.
func IsStateError(err error) bool {
	var sErr *StateError
	return errors.As(err, &sErr)
}

// Snapshot is what observers see after every change.
type Snapshot struct {
	Mode   Mode
	Events int   // events in the script, or remaining events while playing
	Millis int64 // total delay, or remaining delay while playing
}

// Session is the single owner of recorder and player state.
type Session struct {
	mu sync.Mutex

	id        string
	mode      Mode
	script    *script.Script
	rec       *recorder.Recorder
	transport player.Transport
	sink      player.Sink
	clock     clock.Clock
	loop      bool

	walking bool
	cancel  context.CancelFunc

	observer func(Snapshot)
	trace    io.Writer
	logger   *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock shared by recording and playback.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithTransport sets the initial live transport.
func WithTransport(t player.Transport) Option {
	return func(s *Session) { s.transport = t }
}

// WithSink sets the must-complete request sink.
func WithSink(sink player.Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithObserver registers a callback for counter and mode changes. It is
// called without the session lock held.
func WithObserver(fn func(Snapshot)) Option {
	return func(s *Session) { s.observer = fn }
}

// WithTrace sets the trace writer handed to the player.
func WithTrace(w io.Writer) Option {
	return func(s *Session) { s.trace = w }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates an idle session with no script loaded.
func New(opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)
	s.rec = recorder.New(
		recorder.WithClock(s.clock),
		recorder.WithCaptureFunc(func(events int, total int64) {
			s.emit(Snapshot{Mode: Recording, Events: events, Millis: total})
		}),
	)
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Script returns a copy of the current script, or nil if none is loaded.
func (s *Session) Script() *script.Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == Recording {
		return s.rec.Script()
	}
	return s.script.Clone()
}

// EventsTime returns the total delay of the current script in milliseconds.
// It is always recomputed from the script content.
func (s *Session) EventsTime() int64 {
	return s.Counters().Millis
}

// Counters returns the current snapshot.
func (s *Session) Counters() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SetLoop switches loop mode. A running walk picks the change up at the end
// of its current pass.
func (s *Session) SetLoop(loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = loop
}

// Loop reports whether loop mode is on.
func (s *Session) Loop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// SetTransport replaces the live transport. A nil transport means the
// connection was lost: playback and recording stop, the script is kept.
func (s *Session) SetTransport(t player.Transport) {
	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()

	if t == nil {
		s.logger.Warn("live transport lost")
		s.Stop()
	}
}

// Record stops any playback, clears the script and starts capturing.
func (s *Session) Record() {
	s.mu.Lock()
	if s.mode == Playing && s.cancel != nil {
		s.cancel()
	}
	s.rec.Arm()
	s.script = nil
	s.mode = Recording
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("recording started")
	s.emit(snap)
}

// Capture records ev if the session is recording. It reports whether the
// event was captured.
func (s *Session) Capture(ev script.Event) bool {
	return s.rec.Capture(ev)
}

// Stop returns the session to Idle. A pending playback continuation is
// discarded; requests already sent are not retracted.
func (s *Session) Stop() {
	s.mu.Lock()
	prev := s.mode
	if s.cancel != nil {
		s.cancel()
	}
	if prev == Recording {
		s.finishRecordingLocked()
	}
	s.mode = Idle
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if prev != Idle {
		s.logger.Info("stopped", "from", prev.String())
	}
	s.emit(snap)
}

// Play replays the current script and blocks until the walk ends. It
// returns nil when the script completes or the walk is stopped, a
// *player.DispatchError when a step fails, and a *StateError when playback
// cannot start. Recording is stopped first.
func (s *Session) Play(ctx context.Context) (player.Result, error) {
	s.mu.Lock()
	pending := s.script.Len()
	if s.mode == Recording {
		pending = s.rec.Len()
	}
	switch {
	case s.walking:
		err := &StateError{Op: "play", Mode: s.mode, Reason: "a playback walk is still running"}
		s.mu.Unlock()
		return player.Result{}, err
	case pending == 0:
		err := &StateError{Op: "play", Mode: s.mode, Reason: "script is empty"}
		s.mu.Unlock()
		return player.Result{}, err
	case s.transport == nil:
		err := &StateError{Op: "play", Mode: s.mode, Reason: "no live transport"}
		s.mu.Unlock()
		return player.Result{}, err
	}

	if s.mode == Recording {
		s.finishRecordingLocked()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.walking = true
	s.mode = Playing
	scr := s.script

	p := &player.Player{
		Transport:  s.transport,
		Sink:       s.sink,
		Clock:      s.clock,
		LoopFunc:   s.Loop,
		OnProgress: s.onProgress,
		Trace:      s.trace,
		Logger:     s.logger,
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("playback started", "events", scr.Len(), "millis", scr.TotalMillis())
	s.emit(snap)

	res, err := p.Run(runCtx, scr)
	cancel()

	s.mu.Lock()
	s.walking = false
	s.cancel = nil
	if s.mode == Playing {
		s.mode = Idle
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)

	if errors.Is(err, context.Canceled) {
		s.logger.Info("playback stopped", "passes", res.Passes, "dispatched", res.Dispatched)
		return res, nil
	}
	if err != nil {
		s.logger.Error("playback aborted", "error", err)
		return res, err
	}
	s.logger.Info("playback finished", "passes", res.Passes, "dispatched", res.Dispatched)
	return res, nil
}

// Clear empties the script. It is refused while recording or playing.
func (s *Session) Clear() error {
	s.mu.Lock()
	if s.mode != Idle {
		err := &StateError{Op: "clear", Mode: s.mode}
		s.mu.Unlock()
		return err
	}
	s.script = script.New()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
	return nil
}

// Load validates and installs an externally supplied script. On any error
// the current script is left untouched.
func (s *Session) Load(data []byte, f script.Format) error {
	if mode := s.Mode(); mode != Idle {
		return &StateError{Op: "load a script", Mode: mode}
	}

	loaded, err := script.Import(data, f)
	if err != nil {
		return err
	}
	return s.SetScript(loaded)
}

// SetScript installs an already validated script.
func (s *Session) SetScript(scr *script.Script) error {
	if scr == nil {
		return errors.New("script cannot be nil")
	}

	s.mu.Lock()
	if s.mode != Idle {
		err := &StateError{Op: "load a script", Mode: s.mode}
		s.mu.Unlock()
		return err
	}
	s.script = scr.Clone()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
	return nil
}

// Export renders the current script. It is refused while recording or
// playing and when no script is loaded.
func (s *Session) Export(f script.Format) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != Idle {
		return nil, &StateError{Op: "export", Mode: s.mode}
	}
	if s.script == nil {
		return nil, &StateError{Op: "export", Mode: s.mode, Reason: "no script loaded"}
	}
	return script.Export(s.script, f)
}

func (s *Session) onProgress(p player.Progress) {
	s.emit(Snapshot{Mode: Playing, Events: p.Remaining, Millis: p.RemainingMillis})
}

// finishRecordingLocked disarms the recorder and takes over its script.
func (s *Session) finishRecordingLocked() {
	s.rec.Disarm()
	s.script = s.rec.Script()
	s.logger.Info("recording finished", "events", s.script.Len(), "millis", s.script.TotalMillis())
}

func (s *Session) snapshotLocked() Snapshot {
	if s.mode == Recording {
		return Snapshot{Mode: s.mode, Events: s.rec.Len(), Millis: s.rec.TotalMillis()}
	}
	return Snapshot{Mode: s.mode, Events: s.script.Len(), Millis: s.script.TotalMillis()}
}

func (s *Session) emit(snap Snapshot) {
	if s.observer != nil {
		s.observer(snap)
	}
}
