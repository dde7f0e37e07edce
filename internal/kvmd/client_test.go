package kvmd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hid-macro/hid-macro/internal/player"
	"github.com/hid-macro/hid-macro/internal/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method      string
	Path        string
	Query       string
	Body        string
	ContentType string
	User        string
}

func newTestSink(t *testing.T, status int, reply string) (*Sink, *[]capturedRequest) {
	t.Helper()
	var got []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, capturedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			Query:       r.URL.RawQuery,
			Body:        string(body),
			ContentType: r.Header.Get("Content-Type"),
			User:        r.Header.Get("X-KVMD-User"),
		})
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)

	sink, err := NewSink(Options{BaseURL: srv.URL, User: "admin", Password: "admin"})
	require.NoError(t, err)
	return sink, &got
}

func TestSink_Endpoints(t *testing.T) {
	tests := []struct {
		name  string
		event script.Event
		path  string
		query string
		body  string
	}{
		{"print", script.Print{Text: "hello\n"}, "/api/hid/print", "limit=0", "hello\n"},
		{"atx", script.ATXButton{Button: "power_long"}, "/api/atx/click", "button=power_long", ""},
		{"gpio switch on", script.GPIOSwitch{Channel: "relay1", State: true}, "/api/gpio/switch", "channel=relay1&state=1", ""},
		{"gpio switch off", script.GPIOSwitch{Channel: "relay1", State: false}, "/api/gpio/switch", "channel=relay1&state=0", ""},
		{"gpio pulse", script.GPIOPulse{Channel: "a b&c"}, "/api/gpio/pulse", "channel=a+b%26c", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, got := newTestSink(t, http.StatusOK, `{"ok": true}`)

			require.NoError(t, sink.Do(context.Background(), tt.event))
			require.Len(t, *got, 1)

			req := (*got)[0]
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, tt.path, req.Path)
			assert.Equal(t, tt.query, req.Query)
			assert.Equal(t, tt.body, req.Body)
			assert.Equal(t, "admin", req.User)
			if tt.body != "" {
				assert.Equal(t, "text/plain", req.ContentType)
			}
		})
	}
}

func TestSink_PrintTooLarge(t *testing.T) {
	sink, _ := newTestSink(t, http.StatusRequestEntityTooLarge, "")

	err := sink.Do(context.Background(), script.Print{Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, player.ErrPayloadTooLarge)
}

func TestSink_ErrorStatusCarriesBody(t *testing.T) {
	sink, _ := newTestSink(t, http.StatusServiceUnavailable, "atx is disabled\n")

	err := sink.Do(context.Background(), script.ATXButton{Button: "reset"})

	var sErr *StatusError
	require.True(t, errors.As(err, &sErr))
	assert.Equal(t, http.StatusServiceUnavailable, sErr.Code)
	assert.Equal(t, "POST /api/atx/click: status 503: atx is disabled", err.Error())
	assert.NotErrorIs(t, err, player.ErrPayloadTooLarge)
}

func TestSink_RejectsLiveEvents(t *testing.T) {
	sink, got := newTestSink(t, http.StatusOK, "")

	err := sink.Do(context.Background(), script.Key{Key: "KeyA"})
	assert.Error(t, err)
	assert.Empty(t, *got)
}

func TestNewSink_InvalidBase(t *testing.T) {
	for _, raw := range []string{"", "ftp://host", "https://", "://bad"} {
		_, err := NewSink(Options{BaseURL: raw})
		assert.Error(t, err, raw)
	}
}

func TestSocketURL(t *testing.T) {
	u, err := socketURL("https://pikvm.local")
	require.NoError(t, err)
	assert.Equal(t, "wss://pikvm.local/api/ws?stream=0", u)

	u, err = socketURL("http://10.0.0.5:8080/kvm/")
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.5:8080/kvm/api/ws?stream=0", u)
}
