package report

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"testing"
	"time"

	"github.com/hid-macro/hid-macro/internal/player"
	"github.com/hid-macro/hid-macro/internal/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTimestamp = time.Date(2026, 2, 7, 10, 30, 0, 0, time.UTC)

func sampleScript() *script.Script {
	return script.New(
		script.Key{Key: "KeyA", State: true},
		script.Delay{Millis: 1500},
		script.ATXButton{Button: "power"},
		script.Print{Text: "done"},
	)
}

func failedAt(index int) error {
	return &player.DispatchError{
		Index: index,
		Event: sampleScript().Events[index],
		Err:   errors.New("status 500"),
	}
}

func TestBuild_AllDone(t *testing.T) {
	result := Build("boot.json", "s1", sampleScript(), player.Result{Passes: 1, Dispatched: 3, Index: 4}, nil)

	assert.True(t, result.Passed)
	assert.False(t, result.Interrupted)
	assert.Equal(t, 4, result.TotalSteps)
	assert.Equal(t, int64(1500), result.TotalMillis)
	require.Len(t, result.Steps, 4)
	for _, s := range result.Steps {
		assert.Equal(t, StatusDone, s.Status, s.Label)
	}
	assert.Equal(t, "fire-and-forget", result.Steps[0].Delivery)
	assert.Equal(t, "timed", result.Steps[1].Delivery)
	assert.Equal(t, int64(1500), result.Steps[1].Millis)
	assert.Equal(t, "must-complete", result.Steps[2].Delivery)
}

func TestBuild_Failure(t *testing.T) {
	result := Build("boot.json", "", sampleScript(), player.Result{Dispatched: 1, Index: 2}, failedAt(2))

	assert.False(t, result.Passed)
	assert.Equal(t, 1, result.FailedSteps())
	assert.Equal(t, StatusDone, result.Steps[0].Status)
	assert.Equal(t, StatusDone, result.Steps[1].Status)
	assert.Equal(t, StatusFailed, result.Steps[2].Status)
	assert.Equal(t, "status 500", result.Steps[2].Error)
	assert.Equal(t, StatusNotReached, result.Steps[3].Status)
	assert.Contains(t, result.Error, "ATX power click")
}

func TestBuild_Interrupted(t *testing.T) {
	result := Build("boot.json", "", sampleScript(), player.Result{Dispatched: 1, Index: 2}, nil)

	assert.False(t, result.Passed)
	assert.True(t, result.Interrupted)
	assert.Equal(t, StatusNotReached, result.Steps[2].Status)
}

func TestBuild_LoopedWalkMarksAllDone(t *testing.T) {
	result := Build("boot.json", "", sampleScript(), player.Result{Passes: 3, Dispatched: 10, Index: 1}, context.Canceled)

	assert.False(t, result.Passed)
	for _, s := range result.Steps {
		assert.Equal(t, StatusDone, s.Status)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		event script.Event
		want  string
	}{
		{script.Delay{Millis: 40}, "delay 40ms"},
		{script.Print{Text: "hi"}, `print "hi"`},
		{script.Key{Key: "Enter", State: false}, "key Enter up"},
		{script.MouseButton{Button: "left", State: true}, "mouse left down"},
		{script.MouseMove{To: script.Point{X: 1, Y: -2}}, "mouse move to (1, -2)"},
		{script.MouseWheel{Delta: script.Point{Y: 5}}, "mouse wheel (0, 5)"},
		{script.ATXButton{Button: "reset"}, "atx reset"},
		{script.GPIOSwitch{Channel: "relay", State: true}, "gpio relay on"},
		{script.GPIOPulse{Channel: "relay"}, "gpio relay pulse"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.event))
	}
}

func TestFormatJSON(t *testing.T) {
	result := Build("boot.json", "s1", sampleScript(), player.Result{Dispatched: 1, Index: 2}, failedAt(2))

	var buf bytes.Buffer
	require.NoError(t, FormatJSON(&buf, result))

	var parsed PlaybackResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, *result, parsed)
	assert.Contains(t, buf.String(), `"status":"not_reached"`)
}

func TestFormatJUnit_AllPassed(t *testing.T) {
	result := Build("boot", "", sampleScript(), player.Result{Passes: 1, Dispatched: 3, Index: 4}, nil)

	var buf bytes.Buffer
	require.NoError(t, FormatJUnit(&buf, result, "boot.json", testTimestamp))

	var parsed JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &parsed))

	assert.Equal(t, "hid-macro", parsed.Name)
	assert.Equal(t, 4, parsed.Tests)
	assert.Equal(t, 0, parsed.Failures)
	assert.Equal(t, "1.500", parsed.Time)
	require.Len(t, parsed.Suites, 1)

	suite := parsed.Suites[0]
	assert.Equal(t, "boot", suite.Name)
	assert.Equal(t, "2026-02-07T10:30:00Z", suite.Timestamp)
	require.Len(t, suite.Cases, 4)
	assert.Equal(t, "step[1]: delay 1500ms", suite.Cases[1].Name)
	assert.Equal(t, "1.500", suite.Cases[1].Time)
	for _, tc := range suite.Cases {
		assert.Equal(t, "boot.json", tc.Classname)
		assert.Nil(t, tc.Failure)
		assert.Nil(t, tc.Skipped)
	}
}

func TestFormatJUnit_Failure(t *testing.T) {
	result := Build("boot", "", sampleScript(), player.Result{Dispatched: 1, Index: 2}, failedAt(2))

	var buf bytes.Buffer
	require.NoError(t, FormatJUnit(&buf, result, "boot.json", testTimestamp))

	var parsed JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &parsed))

	suite := parsed.Suites[0]
	assert.Equal(t, 1, suite.Failures)
	assert.Equal(t, 1, suite.Skipped)
	assert.Equal(t, 0, suite.Errors)
	require.NotNil(t, suite.Cases[2].Failure)
	assert.Equal(t, "DispatchFailure", suite.Cases[2].Failure.Type)
	assert.Equal(t, "status 500", suite.Cases[2].Failure.Message)
	require.NotNil(t, suite.Cases[3].Skipped)
}

func TestFormatJUnit_Interrupted(t *testing.T) {
	result := Build("boot", "", sampleScript(), player.Result{Index: 1}, nil)

	var buf bytes.Buffer
	require.NoError(t, FormatJUnit(&buf, result, "boot.json", testTimestamp))

	var parsed JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &parsed))

	suite := parsed.Suites[0]
	assert.Equal(t, 1, suite.Errors)
	require.Len(t, suite.Cases, 5)
	assert.Equal(t, "Interrupted", suite.Cases[4].Failure.Type)
}

func TestFormatJUnit_HeaderAndDefaultTimestamp(t *testing.T) {
	result := Build("boot", "", sampleScript(), player.Result{Passes: 1, Index: 4}, nil)

	var buf bytes.Buffer
	require.NoError(t, FormatJUnit(&buf, result, "boot.json", time.Time{}))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte(xml.Header)))
	assert.NotContains(t, buf.String(), `timestamp="0001-01-01`)
}
