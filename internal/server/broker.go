package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jbx/internal/shared"
)

const (
	DefaultHeartbeat   = 30 * time.Second
	DefaultClientQueue = 50
)

// heartbeat is the keep-alive payload clients discard.
var heartbeat = []byte(`{"type": "heartbeat"}`)

// BrokerOptions tunes a [Broker]. Zero values get defaults.
type BrokerOptions struct {
	Heartbeat time.Duration
	QueueSize int
	// Initial, when set, produces a message sent to each client as soon as it connects.
	Initial func() any
	Logger  *log.Logger
}

type client struct {
	id    string
	queue chan []byte
}

// Broker publishes JSON messages to every connected event-stream client.
type Broker struct {
	name string
	opts BrokerOptions

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewBroker creates a broker; name is used in log lines.
func NewBroker(name string, opts BrokerOptions) *Broker {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultClientQueue
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	opts.Logger = shared.WithLogger(opts.Logger, "stream", name)
	return &Broker{name: name, opts: opts, clients: map[*client]struct{}{}}
}

// Publish encodes v and queues it for every client without blocking.
//
// A client whose queue is full is dropped.
func (b *Broker) Publish(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", b.name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for c := range b.clients {
		select {
		case c.queue <- data:
		default:
			delete(b.clients, c)
			close(c.queue)
			dropped++
		}
	}
	if dropped > 0 {
		b.opts.Logger.Warn("removed slow clients", "count", dropped)
	}
	return nil
}

// Clients returns the number of connected clients.
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client and rejects new ones.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for c := range b.clients {
		delete(b.clients, c)
		close(c.queue)
	}
}

func (b *Broker) subscribe() (*client, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	c := &client{id: shared.GenerateID(), queue: make(chan []byte, b.opts.QueueSize)}
	b.clients[c] = struct{}{}
	return c, true
}

func (b *Broker) unsubscribe(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.queue)
	}
}

// ServeHTTP streams messages to one client until it disconnects, is dropped, or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	c, ok := b.subscribe()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "Stream closed")
		return
	}
	defer b.unsubscribe(c)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	logger := shared.WithLogger(b.opts.Logger, "client", c.id)
	logger.Debug("client connected", "clients", b.Clients())

	if b.opts.Initial != nil {
		data, err := json.Marshal(b.opts.Initial())
		if err != nil {
			logger.Error("failed to encode initial state", "error", err)
		} else if !writeEvent(w, flusher, data) {
			return
		}
	} else {
		flusher.Flush()
	}

	idle := time.NewTimer(b.opts.Heartbeat)
	defer idle.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("client disconnected")
			return
		case data, ok := <-c.queue:
			if !ok {
				logger.Debug("client removed")
				return
			}
			if !writeEvent(w, flusher, data) {
				return
			}
		case <-idle.C:
			if !writeEvent(w, flusher, heartbeat) {
				return
			}
		}
		idle.Reset(b.opts.Heartbeat)
	}
}

func writeEvent(w http.ResponseWriter, f http.Flusher, data []byte) bool {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return false
	}
	f.Flush()
	return true
}
