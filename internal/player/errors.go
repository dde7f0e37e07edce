package player

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hid-macro/hid-macro/internal/script"
	"golang.org/x/term"
)

var (
	// ErrPayloadTooLarge marks a print rejected by the target for its size.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrEmptyScript is returned when there is nothing to replay.
	ErrEmptyScript = errors.New("script has no events")

	// ErrNoTransport is returned when a fire-and-forget event has no live channel.
	ErrNoTransport = errors.New("no live transport")

	// ErrNoSink is returned when a must-complete event has no request sink.
	ErrNoSink = errors.New("no request sink")
)

// DispatchError reports a step that could not be delivered. Playback stops
// at the first one.
type DispatchError struct {
	Index int
	Event script.Event
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s failed at step %d: %s", actionName(e.Event), e.Index, e.reason())
}

func (e *DispatchError) Unwrap() error { return e.Err }

// TooLarge reports whether the target rejected a print for its size.
func (e *DispatchError) TooLarge() bool {
	return errors.Is(e.Err, ErrPayloadTooLarge)
}

func (e *DispatchError) reason() string {
	if e.TooLarge() {
		return "payload too large: too much text to paste"
	}
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}

// actionName names the action for user-facing messages.
func actionName(ev script.Event) string {
	switch e := ev.(type) {
	case script.Print:
		return "HID paste"
	case script.ATXButton:
		return fmt.Sprintf("ATX %s click", e.Button)
	case script.GPIOSwitch:
		return fmt.Sprintf("GPIO switch %s", e.Channel)
	case script.GPIOPulse:
		return fmt.Sprintf("GPIO pulse %s", e.Channel)
	case nil:
		return "event"
	default:
		return string(ev.Kind())
	}
}

// colorMode controls ANSI color output in error messages.
type colorMode int

const (
	colorAuto colorMode = iota
	colorOn
	colorOff
)

// resolveColor determines whether to emit ANSI color codes.
// Priority: HIDMACRO_COLOR env > NO_COLOR env > auto-detect stderr TTY.
func resolveColor() colorMode {
	if v := os.Getenv("HIDMACRO_COLOR"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return colorOn
		case "0", "false", "no", "off":
			return colorOff
		}
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return colorOff
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return colorOn
	}
	return colorOff
}

func red(s string, c colorMode) string {
	if c == colorOn {
		return "\033[31m" + s + "\033[0m"
	}
	return s
}

func bold(s string, c colorMode) string {
	if c == colorOn {
		return "\033[1m" + s + "\033[0m"
	}
	return s
}

// maxPreview is the number of characters of print text shown in reports.
const maxPreview = 60

// FormatDispatchError formats a DispatchError for the terminal.
func FormatDispatchError(err *DispatchError) string {
	color := resolveColor()
	var sb strings.Builder

	sb.WriteString(bold(fmt.Sprintf("Playback aborted at step %d:\n", err.Index+1), color))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  Action: %s\n", actionName(err.Event))

	if p, ok := err.Event.(script.Print); ok {
		text := p.Text
		if len(text) > maxPreview {
			text = text[:maxPreview] + "..."
		}
		fmt.Fprintf(&sb, "  Text:   %q (%d bytes)\n", text, len(p.Text))
	}

	if err.TooLarge() {
		fmt.Fprintf(&sb, "  Error:  %s\n", red("too much text to paste", color))
	} else {
		fmt.Fprintf(&sb, "  Error:  %s\n", red(err.reason(), color))
	}
	sb.WriteString("\n  No further events were sent.\n")

	return sb.String()
}
