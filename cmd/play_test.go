package cmd

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hid-macro/hid-macro/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

// kvmdHost is a minimal kvmd: a socket that collects HID frames and an HTTP
// API that records actions.
type kvmdHost struct {
	mu       sync.Mutex
	frames   []string
	requests []string
	status   map[string]int
}

func newKVMDHost(t *testing.T) (*kvmdHost, string) {
	t.Helper()
	h := &kvmdHost{status: map[string]int{}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/ws" {
			h.serveSocket(w, r)
			return
		}
		_, _ = io.Copy(io.Discard, r.Body)

		h.mu.Lock()
		h.requests = append(h.requests, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		code, ok := h.status[r.URL.Path]
		h.mu.Unlock()
		if !ok {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		_, _ = io.WriteString(w, `{"ok": true, "result": {}}`)
	}))
	t.Cleanup(srv.Close)
	return h, srv.URL
}

func (h *kvmdHost) serveSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		h.mu.Lock()
		h.frames = append(h.frames, string(data))
		h.mu.Unlock()
	}
}

func (h *kvmdHost) snapshot() ([]string, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.frames...), append([]string(nil), h.requests...)
}

func makePlayRoot(args ...string) (*cobra.Command, func() cmdOutput) {
	playNameFlag, playLoopFlag, playReportFlag = "", false, ""
	play := newCommand("play", cobra.MaximumNArgs(1), runPlay, func(fs *pflag.FlagSet) {
		fs.StringVar(&playNameFlag, "name", "", "library name")
		fs.BoolVar(&playLoopFlag, "loop", false, "loop")
		fs.StringVar(&playReportFlag, "report", "", "report format")
	})
	root, stdout, stderr := makeRoot(play)
	root.SetArgs(append([]string{"play"}, args...))
	return root, func() cmdOutput { return cmdOutput{stdout.String(), stderr.String()} }
}

func TestPlay_ReplaysAgainstHost(t *testing.T) {
	host, url := newKVMDHost(t)
	useTestConfig(t).URL = url

	root, out := makePlayRoot(fixture("login.json"), "--report", "json")
	require.NoError(t, root.Execute())

	frames, requests := host.snapshot()
	// Close waits for the closing handshake, so the host has read every frame.
	require.Len(t, frames, 2)
	assert.JSONEq(t, `{"event_type": "key", "event": {"key": "KeyA", "state": true}}`, frames[0])
	assert.JSONEq(t, `{"event_type": "key", "event": {"key": "KeyA", "state": false}}`, frames[1])
	assert.Equal(t, []string{
		"POST /api/hid/print?limit=0",
		"POST /api/gpio/switch?channel=relay1&state=1",
	}, requests)

	var result report.PlaybackResult
	require.NoError(t, json.Unmarshal([]byte(out().stdout), &result))
	assert.True(t, result.Passed)
	assert.Equal(t, "login.json", result.Script)
	assert.Equal(t, 1, result.Passes)
	assert.Equal(t, 4, result.Dispatched)
	assert.Contains(t, out().stderr, "✓ Played login.json: 1 pass(es), 4 event(s) sent")
}

func TestPlay_RejectedRequestAborts(t *testing.T) {
	host, url := newKVMDHost(t)
	host.status["/api/hid/print"] = http.StatusRequestEntityTooLarge
	useTestConfig(t).URL = url

	root, out := makePlayRoot(fixture("login.json"), "--report", "junit")
	err := root.Execute()
	assert.ErrorIs(t, err, errPlaybackFailed)

	_, requests := host.snapshot()
	assert.Equal(t, []string{"POST /api/hid/print?limit=0"}, requests, "nothing after the rejected paste")

	stderr := out().stderr
	assert.Contains(t, stderr, "Playback aborted at step 4")
	assert.Contains(t, stderr, "too much text to paste")

	var suites report.JUnitTestSuites
	require.NoError(t, xml.Unmarshal([]byte(out().stdout), &suites))
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 2, suites.Suites[0].Skipped)
}

func TestPlay_FromLibrary(t *testing.T) {
	host, url := newKVMDHost(t)
	useTestConfig(t).URL = url

	scr, err := readScriptFile(fixture("login.json"))
	require.NoError(t, err)
	require.NoError(t, saveToLibrary(context.Background(), "login", scr))

	root, out := makePlayRoot("--name", "login")
	require.NoError(t, root.Execute())

	frames, requests := host.snapshot()
	assert.Len(t, frames, 2)
	assert.Len(t, requests, 2)
	assert.Contains(t, out().stderr, "✓ Played login: 1 pass(es)")
}

func TestPlay_ArgumentErrors(t *testing.T) {
	useTestConfig(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"nothing to play", nil, "no script specified"},
		{"file and name", []string{fixture("login.json"), "--name", "x"}, "not both"},
		{"bad report", []string{fixture("login.json"), "--report", "html"}, `invalid report format "html"`},
		{"invalid script", []string{fixture("bad-state.json")}, "Non-bool key state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, _ := makePlayRoot(tt.args...)
			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPlay_HostUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	useTestConfig(t).URL = srv.URL
	srv.Close()

	root, _ := makePlayRoot(fixture("login.json"))
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}
