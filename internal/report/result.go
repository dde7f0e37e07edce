// Package report provides structured output types and formatters for
// playback results (JSON, JUnit XML).
package report

import (
	"errors"
	"fmt"

	"github.com/hid-macro/hid-macro/internal/player"
	"github.com/hid-macro/hid-macro/internal/script"
)

// Step statuses.
const (
	StatusDone       = "done"
	StatusFailed     = "failed"
	StatusNotReached = "not_reached"
)

// PlaybackResult represents the structured output of one playback run.
type PlaybackResult struct {
	Script      string       `json:"script"`
	Session     string       `json:"session,omitempty"`
	Passed      bool         `json:"passed"`
	Interrupted bool         `json:"interrupted,omitempty"`
	Passes      int          `json:"passes"`
	TotalSteps  int          `json:"total_steps"`
	Dispatched  int          `json:"dispatched"`
	TotalMillis int64        `json:"total_millis"`
	Error       string       `json:"error,omitempty"`
	Steps       []StepResult `json:"steps"`
}

// StepResult represents the outcome of a single script event.
type StepResult struct {
	Index    int    `json:"index"`
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	Delivery string `json:"delivery"`
	Millis   int64  `json:"millis,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Build constructs a PlaybackResult from the script that was played, the
// player's result and the error the walk ended with. A walk that ended
// without error before finishing a single pass is reported as interrupted.
func Build(name, session string, scr *script.Script, res player.Result, runErr error) *PlaybackResult {
	result := &PlaybackResult{
		Script:      name,
		Session:     session,
		Passes:      res.Passes,
		TotalSteps:  scr.Len(),
		Dispatched:  res.Dispatched,
		TotalMillis: scr.TotalMillis(),
		Steps:       make([]StepResult, scr.Len()),
	}

	failed := -1
	var dErr *player.DispatchError
	if errors.As(runErr, &dErr) {
		failed = dErr.Index
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}

	for i := 0; i < scr.Len(); i++ {
		ev := scr.Events[i]
		step := StepResult{
			Index: i,
			Kind:  string(ev.Kind()),
			Label: Label(ev),
		}
		if delivery, err := script.DeliveryOf(ev); err == nil {
			step.Delivery = delivery.String()
		}
		if d, ok := ev.(script.Delay); ok {
			step.Millis = d.Millis
		}

		switch {
		case i == failed:
			step.Status = StatusFailed
			step.Error = dErr.Err.Error()
		case res.Passes > 0 || i < res.Index:
			step.Status = StatusDone
		default:
			step.Status = StatusNotReached
		}
		result.Steps[i] = step
	}

	result.Passed = runErr == nil && res.Passes > 0
	result.Interrupted = runErr == nil && res.Passes == 0
	return result
}

// FailedSteps returns the number of failed steps.
func (r *PlaybackResult) FailedSteps() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Label builds a human-readable label for an event.
func Label(ev script.Event) string {
	switch e := ev.(type) {
	case script.Delay:
		return fmt.Sprintf("delay %dms", e.Millis)
	case script.Print:
		return fmt.Sprintf("print %q", preview(e.Text, 40))
	case script.Key:
		return fmt.Sprintf("key %s %s", e.Key, pressed(e.State))
	case script.MouseButton:
		return fmt.Sprintf("mouse %s %s", e.Button, pressed(e.State))
	case script.MouseMove:
		return fmt.Sprintf("mouse move to (%d, %d)", e.To.X, e.To.Y)
	case script.MouseWheel:
		return fmt.Sprintf("mouse wheel (%d, %d)", e.Delta.X, e.Delta.Y)
	case script.ATXButton:
		return fmt.Sprintf("atx %s", e.Button)
	case script.GPIOSwitch:
		state := "off"
		if e.State {
			state = "on"
		}
		return fmt.Sprintf("gpio %s %s", e.Channel, state)
	case script.GPIOPulse:
		return fmt.Sprintf("gpio %s pulse", e.Channel)
	default:
		return fmt.Sprintf("unsupported event %T", ev)
	}
}

func pressed(state bool) string {
	if state {
		return "down"
	}
	return "up"
}

func preview(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
