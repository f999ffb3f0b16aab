package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jbx/internal/shared"
)

// ConnState is the lifecycle state of one push connection.
type ConnState int

const (
	Connecting ConnState = iota
	Open
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Keepalive message types carry no state and are never delivered.
const (
	TypeHeartbeat = "heartbeat"
	TypeTest      = "test"
)

// Event is one decoded push message.
//
// Type is the payload's "type" field, empty for untyped payloads such as bare download entries.
type Event struct {
	Type string
	Name string
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the raw payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidEvent, err)
	}
	return nil
}

// Handler receives events in transport order, one at a time.
type Handler func(Event)

// Options tune reconnect behaviour and injected collaborators.
type Options struct {
	MaxReconnectAttempts int
	BaseDelay            time.Duration
	HTTPClient           *http.Client
	Clock                shared.Clock
	Logger               *log.Logger
}

// DefaultOptions matches the server's expectations: five attempts starting at one second.
func DefaultOptions() Options {
	return Options{MaxReconnectAttempts: 5, BaseDelay: time.Second}
}

// OptionsFromConfig builds Options from the [stream] config section.
func OptionsFromConfig(cfg shared.StreamConfig) Options {
	return Options{MaxReconnectAttempts: cfg.MaxReconnectAttempts, BaseDelay: cfg.BaseDelay()}
}

// Client keeps a single logical subscription to one push channel alive.
//
// At most one connection is live at a time. Transport errors schedule a reconnect with
// exponential backoff; exhausting the attempts leaves the channel down until
// [Client.EnsureConnected] or [Client.Connect] is called.
type Client struct {
	url     string
	handler Handler
	opts    Options
	logger  *log.Logger

	mu       sync.Mutex
	conn     *conn
	attempts int
	retry    shared.Timer
	seq      int

	// deliver is held by a reader across its liveness check and the handler call.
	// Connect and Close take it before mu, so a replaced connection delivers nothing after they return.
	deliver sync.Mutex
}

// conn is one physical connection attempt.
type conn struct {
	id     int
	state  ConnState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a client for url. Nothing is opened until [Client.Connect].
func NewClient(url string, handler Handler, opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxReconnectAttempts < 0 {
		opts.MaxReconnectAttempts = 0
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if handler == nil {
		handler = func(Event) {}
	}

	return &Client{
		url:     url,
		handler: handler,
		opts:    opts,
		logger:  shared.WithLogger(opts.Logger, "url", url),
	}
}

// URL returns the channel endpoint.
func (c *Client) URL() string { return c.url }

// State reports the current connection's state; Closed when there is none.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return Closed
	}
	return c.conn.state
}

// Attempts reports how many reconnects have been scheduled since the last successful open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect discards any existing connection and opens a new one.
//
// It waits for an in-flight handler call to return, so it must not be called from the handler.
func (c *Client) Connect() {
	c.deliver.Lock()
	defer c.deliver.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectLocked()
}

// EnsureConnected opens a connection only when none exists or the current one is closed.
func (c *Client) EnsureConnected() {
	c.deliver.Lock()
	defer c.deliver.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && c.conn.state != Closed {
		return
	}
	c.connectLocked()
}

// Close tears down the connection and cancels any pending reconnect.
func (c *Client) Close() {
	c.deliver.Lock()
	defer c.deliver.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopRetryLocked()
	if c.conn == nil {
		return
	}
	c.conn.state = Closed
	c.conn.cancel()
	c.conn = nil
	c.logger.Info("stream closed")
}

// Done returns a channel closed when the current connection's reader exits, or nil if there is none.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.done
}

func (c *Client) connectLocked() {
	if c.conn != nil {
		c.conn.state = Closed
		c.conn.cancel()
		c.conn = nil
	}
	c.stopRetryLocked()

	c.seq++
	ctx, cancel := context.WithCancel(context.Background())
	cn := &conn{id: c.seq, state: Connecting, cancel: cancel, done: make(chan struct{})}
	c.conn = cn

	c.logger.Debug("connecting", "conn", cn.id)
	go c.run(ctx, cn)
}

func (c *Client) stopRetryLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}

// current reports whether cn is still the live connection.
func (c *Client) current(cn *conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == cn
}

func (c *Client) run(ctx context.Context, cn *conn) {
	defer close(cn.done)

	err := c.subscribe(ctx, cn)
	if ctx.Err() != nil {
		return
	}
	if err == nil {
		err = shared.ErrStreamClosed
	}
	c.fail(cn, err)
}

func (c *Client) subscribe(ctx context.Context, cn *conn) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", shared.ErrStreamStatus, resp.StatusCode)
	}

	c.open(cn)

	return readMessages(resp.Body, func(m message) {
		c.deliver.Lock()
		defer c.deliver.Unlock()
		if !c.current(cn) {
			return
		}
		c.dispatch(m)
	})
}

func (c *Client) open(cn *conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != cn {
		return
	}
	cn.state = Open
	c.attempts = 0
	c.logger.Info("stream open", "conn", cn.id)
}

// dispatch decodes m and hands it to the handler unless it is a keepalive.
func (c *Client) dispatch(m message) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(m.Data), &head); err != nil {
		c.logger.Error("dropping malformed message", "err", fmt.Errorf("%w: %v", shared.ErrInvalidEvent, err))
		return
	}

	if head.Type == TypeHeartbeat || head.Type == TypeTest {
		c.logger.Debug("keepalive", "type", head.Type)
		return
	}

	c.logger.Debug("event", "type", head.Type)
	c.handler(Event{Type: head.Type, Name: m.Event, ID: m.ID, Data: json.RawMessage(m.Data)})
}

// fail marks cn closed and schedules a reconnect if attempts remain.
func (c *Client) fail(cn *conn, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != cn {
		return
	}
	cn.state = Closed

	if c.attempts >= c.opts.MaxReconnectAttempts {
		c.logger.Error("giving up on stream", "err", errors.Join(shared.ErrMaxReconnects, cause), "attempts", c.attempts)
		return
	}

	delay := c.opts.BaseDelay << c.attempts
	c.attempts++
	c.logger.Warn("stream error, reconnecting", "err", cause, "attempt", c.attempts, "delay", delay)

	c.retry = c.opts.Clock.AfterFunc(delay, func() { c.reconnect(cn) })
}

// reconnect fires from the backoff timer; a manual Connect or Close in between wins.
func (c *Client) reconnect(cn *conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != cn || cn.state != Closed {
		return
	}
	c.retry = nil
	c.connectLocked()
}
