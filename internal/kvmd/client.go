// Package kvmd talks to a kvmd host: HID input over the /api/ws socket and
// must-complete actions over its HTTP API.
package kvmd

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hid-macro/hid-macro/internal/player"
	"github.com/hid-macro/hid-macro/internal/script"
)

// DefaultTimeout bounds a single HTTP action.
const DefaultTimeout = 10 * time.Second

// Options describes how to reach a kvmd host.
type Options struct {
	BaseURL  string // e.g. https://pikvm.local
	User     string
	Password string
	Timeout  time.Duration
	Insecure bool // skip TLS verification

	// HTTPClient overrides the client built from Timeout and Insecure.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if o.Insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) authorize(h http.Header) {
	if o.User != "" {
		h.Set("X-KVMD-User", o.User)
		h.Set("X-KVMD-Passwd", o.Password)
	}
}

// Sink executes must-complete events through the kvmd HTTP API.
type Sink struct {
	base   *url.URL
	opts   Options
	client *http.Client
	logger *slog.Logger
}

var _ player.Sink = (*Sink)(nil)

// NewSink validates the base URL and returns a Sink.
func NewSink(opts Options) (*Sink, error) {
	base, err := parseBase(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	return &Sink{
		base:   base,
		opts:   opts,
		client: opts.httpClient(),
		logger: opts.logger(),
	}, nil
}

// Do performs the request for ev and returns once kvmd has answered. A 413
// on a paste is reported as player.ErrPayloadTooLarge.
func (s *Sink) Do(ctx context.Context, ev script.Event) error {
	path, query, body, err := endpoint(ev)
	if err != nil {
		return err
	}

	u := s.base.JoinPath(path)
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "text/plain")
	}
	s.opts.authorize(req.Header)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("kvmd request failed", "path", path, "error", err)
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	s.logger.Error("kvmd rejected request", "path", path, "status", resp.StatusCode)
	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return fmt.Errorf("POST %s: status %d: %w", path, resp.StatusCode, player.ErrPayloadTooLarge)
	}
	return &StatusError{Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}

// StatusError is a non-200 answer from kvmd.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("POST %s: status %d", e.Path, e.Code)
	}
	return fmt.Sprintf("POST %s: status %d: %s", e.Path, e.Code, e.Body)
}

// endpoint maps a must-complete event to its kvmd API call.
func endpoint(ev script.Event) (path string, query url.Values, body string, err error) {
	query = url.Values{}
	switch e := ev.(type) {
	case script.Print:
		query.Set("limit", "0")
		return "/api/hid/print", query, e.Text, nil
	case script.ATXButton:
		query.Set("button", e.Button)
		return "/api/atx/click", query, "", nil
	case script.GPIOSwitch:
		query.Set("channel", e.Channel)
		query.Set("state", boolParam(e.State))
		return "/api/gpio/switch", query, "", nil
	case script.GPIOPulse:
		query.Set("channel", e.Channel)
		return "/api/gpio/pulse", query, "", nil
	default:
		return "", nil, "", fmt.Errorf("kvmd: %T is not a must-complete event", ev)
	}
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseBase(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("kvmd: base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("kvmd: invalid base URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("kvmd: base URL %q must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("kvmd: base URL %q has no host", raw)
	}
	return u, nil
}
