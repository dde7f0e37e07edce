package kvmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/hid-macro/hid-macro/internal/player"
	"github.com/hid-macro/hid-macro/internal/script"
	"nhooyr.io/websocket"
)

// Conn is the live kvmd socket. It carries fire-and-forget HID events; the
// messages kvmd pushes back are drained and logged.
type Conn struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

var _ player.Transport = (*Conn)(nil)

// Dial opens /api/ws on the host described by opts. State streaming is
// disabled since only the event channel is used.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	u, err := socketURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	dialOpts := &websocket.DialOptions{
		HTTPClient: opts.httpClient(),
		HTTPHeader: map[string][]string{},
	}
	opts.authorize(dialOpts.HTTPHeader)

	conn, _, err := websocket.Dial(ctx, u, dialOpts)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		conn:   conn,
		logger: opts.logger(),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go c.readLoop(readCtx)
	return c, nil
}

// Send writes ev as one text frame. Only fire-and-forget events are
// accepted; the call returns as soon as the frame is written.
func (c *Conn) Send(ctx context.Context, ev script.Event) error {
	delivery, err := script.DeliveryOf(ev)
	if err != nil {
		return err
	}
	if delivery != script.FireAndForget {
		return fmt.Errorf("kvmd: %s events are not sent over the socket", ev.Kind())
	}

	data, err := script.MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.err != nil {
		return c.err
	}
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Done is closed when the socket stops reading, either through Close or
// because the host went away.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the read error that ended the connection, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close shuts the socket down. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Close(websocket.StatusNormalClosure, "closing")
	c.cancel()
	<-c.done
	return err
}

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("kvmd: connection closed")

type serverEvent struct {
	EventType string          `json:"event_type"`
	Event     json.RawMessage `json:"event"`
}

func (c *Conn) readLoop(ctx context.Context) {
	defer close(c.done)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			if !closed {
				c.err = fmt.Errorf("read error: %w", err)
			}
			c.mu.Unlock()
			if !closed {
				c.logger.Error("kvmd socket lost", "error", err)
			}
			return
		}

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("failed to unmarshal kvmd event", "error", err)
			continue
		}
		c.logger.Debug("kvmd event", "type", ev.EventType)
	}
}

func socketURL(base string) (string, error) {
	u, err := parseBase(base)
	if err != nil {
		return "", err
	}
	ws := *u
	if u.Scheme == "https" {
		ws.Scheme = "wss"
	} else {
		ws.Scheme = "ws"
	}
	ws.RawQuery = url.Values{"stream": {"0"}}.Encode()
	return ws.JoinPath("/api/ws").String(), nil
}
