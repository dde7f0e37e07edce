package player

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hid-macro/hid-macro/internal/script"
	"github.com/stretchr/testify/assert"
)

func TestDispatchError_Error(t *testing.T) {
	err := &DispatchError{
		Index: 4,
		Event: script.GPIOSwitch{Channel: "relay1", State: true},
		Err:   errors.New("status 503"),
	}

	assert.Equal(t, "GPIO switch relay1 failed at step 4: status 503", err.Error())
	assert.False(t, err.TooLarge())
}

func TestDispatchError_TooLarge(t *testing.T) {
	err := &DispatchError{
		Index: 0,
		Event: script.Print{Text: "x"},
		Err:   fmt.Errorf("status 413: %w", ErrPayloadTooLarge),
	}

	assert.True(t, err.TooLarge())
	assert.Equal(t, "HID paste failed at step 0: payload too large: too much text to paste", err.Error())
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestFormatDispatchError_Print(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	err := &DispatchError{
		Index: 2,
		Event: script.Print{Text: strings.Repeat("a", 100)},
		Err:   fmt.Errorf("status 413: %w", ErrPayloadTooLarge),
	}

	formatted := FormatDispatchError(err)

	assert.Contains(t, formatted, "Playback aborted at step 3")
	assert.Contains(t, formatted, "Action: HID paste")
	assert.Contains(t, formatted, "(100 bytes)")
	assert.Contains(t, formatted, "...")
	assert.Contains(t, formatted, "too much text to paste")
	assert.NotContains(t, formatted, "\033[")
}

func TestFormatDispatchError_ForcedColor(t *testing.T) {
	t.Setenv("HIDMACRO_COLOR", "on")

	formatted := FormatDispatchError(&DispatchError{
		Index: 0,
		Event: script.ATXButton{Button: "power"},
		Err:   errors.New("status 500"),
	})

	assert.Contains(t, formatted, "\033[31mstatus 500\033[0m")
	assert.Contains(t, formatted, "Action: ATX power click")
}

func TestIsTraceEnabled(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "on"} {
		assert.True(t, IsTraceEnabled(v), v)
	}
	for _, v := range []string{"", "0", "off", "maybe"} {
		assert.False(t, IsTraceEnabled(v), v)
	}
}
