package player

import (
	"fmt"
	"io"
	"strings"

	"github.com/hid-macro/hid-macro/internal/script"
)

// TraceEnvVar is the environment variable name for enabling trace mode.
const TraceEnvVar = "HIDMACRO_TRACE"

// WriteTraceOutput writes trace information to the given writer.
func WriteTraceOutput(w io.Writer, stepIndex int, ev script.Event) {
	_, _ = fmt.Fprintf(w, "[hid-macro] step=%d kind=%s event=%+v\n", stepIndex, ev.Kind(), ev)
}

// IsTraceEnabled returns true if trace mode should be enabled.
func IsTraceEnabled(envValue string) bool {
	switch strings.ToLower(envValue) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
