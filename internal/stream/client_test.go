package stream

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/jbx/internal/shared"
	tu "github.com/desertthunder/jbx/internal/testing"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// streamServer writes frames then holds the connection until the client goes away.
func streamServer(t *testing.T, frames ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, f := range frames {
			fmt.Fprint(w, f)
		}
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// failingServer answers 503 to every request.
func failingServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(url string, h Handler, clock shared.Clock) *Client {
	opts := DefaultOptions()
	opts.Clock = clock
	opts.Logger = shared.NewLogger(io.Discard)
	if h == nil {
		h = func(Event) {}
	}
	return NewClient(url, h, opts)
}

// waitDone blocks until the client's current connection has finished handling its failure.
func waitDone(t *testing.T, c *Client) {
	t.Helper()
	done := c.Done()
	require.NotNil(t, done, "expected a live connection")
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not finish")
	}
}

func TestConnState(t *testing.T) {
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "unknown", ConnState(9).String())
}

func TestClientDelivery(t *testing.T) {
	t.Run("delivers typed events and skips keepalives", func(t *testing.T) {
		srv, _ := streamServer(t,
			"data: {\"type\": \"heartbeat\"}\n\n",
			"data: {\"type\": \"test\"}\n\n",
			"data: {\"type\": \"player_state_change\", \"is_playing\": true}\n\n",
			"data: {not json\n\n",
			"data: {\"id\": \"d1\", \"status\": \"downloading\"}\n\n",
			"data: {\"type\": \"discord_status_change\"}\n\n",
		)
		rec := &recorder{}
		c := newTestClient(srv.URL, rec.handle, tu.NewFakeClock())
		defer c.Close()

		c.Connect()
		tu.Eventually(t, 2*time.Second, func() bool { return len(rec.types()) == 3 }, "three events delivered")

		assert.Equal(t, []string{"player_state_change", "", "discord_status_change"}, rec.types())
		assert.Equal(t, Open, c.State())
	})

	t.Run("Decode reports invalid payloads", func(t *testing.T) {
		var v struct{ ID string }
		err := Event{Data: []byte(`[1,2]`)}.Decode(&v)
		assert.ErrorIs(t, err, shared.ErrInvalidEvent)

		require.NoError(t, Event{Data: []byte(`{"id":"x"}`)}.Decode(&v))
		assert.Equal(t, "x", v.ID)
	})
}

func TestClientBackoff(t *testing.T) {
	t.Run("doubles the delay for each attempt then gives up", func(t *testing.T) {
		srv, hits := failingServer(t)
		clock := tu.NewFakeClock()
		c := newTestClient(srv.URL, nil, clock)
		defer c.Close()

		c.Connect()
		waitDone(t, c)

		for n, want := range []time.Duration{1, 2, 4, 8, 16} {
			want *= time.Second
			require.Equal(t, []time.Duration{want}, clock.Pending(), "attempt %d", n+1)
			assert.Equal(t, n+1, c.Attempts())

			clock.Advance(want)
			waitDone(t, c)
		}

		assert.Empty(t, clock.Pending(), "no reconnect after the fifth attempt")
		assert.Equal(t, int32(6), hits.Load())
		assert.Equal(t, Closed, c.State())
		assert.Equal(t, 5, c.Attempts())
	})

	t.Run("a successful open resets the attempt counter", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) <= 2 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "data: {\"type\": \"heartbeat\"}\n\n")
		}))
		defer srv.Close()

		clock := tu.NewFakeClock()
		c := newTestClient(srv.URL, nil, clock)
		defer c.Close()

		c.Connect()
		waitDone(t, c)
		clock.Advance(time.Second)
		waitDone(t, c)
		require.Equal(t, []time.Duration{2 * time.Second}, clock.Pending())

		clock.Advance(2 * time.Second)
		waitDone(t, c)

		assert.Equal(t, []time.Duration{time.Second}, clock.Pending(), "stream end after open restarts at the base delay")
		assert.Equal(t, 1, c.Attempts())
	})

	t.Run("a manual connect supersedes a pending reconnect", func(t *testing.T) {
		srv, hits := failingServer(t)
		clock := tu.NewFakeClock()
		c := newTestClient(srv.URL, nil, clock)
		defer c.Close()

		c.Connect()
		waitDone(t, c)
		require.Len(t, clock.Pending(), 1)

		c.Connect()
		waitDone(t, c)
		before := hits.Load()

		clock.Advance(time.Second)
		assert.Equal(t, before, hits.Load(), "stale timer must not open another connection")
	})

	t.Run("Close cancels a pending reconnect", func(t *testing.T) {
		srv, hits := failingServer(t)
		clock := tu.NewFakeClock()
		c := newTestClient(srv.URL, nil, clock)

		c.Connect()
		waitDone(t, c)
		require.Len(t, clock.Pending(), 1)

		c.Close()
		assert.Empty(t, clock.Pending())
		clock.Advance(time.Minute)
		assert.Equal(t, int32(1), hits.Load())
		assert.Nil(t, c.Done())
	})

	t.Run("zero attempts disables reconnects", func(t *testing.T) {
		srv, _ := failingServer(t)
		clock := tu.NewFakeClock()
		opts := Options{MaxReconnectAttempts: 0, BaseDelay: time.Second, Clock: clock, Logger: shared.NewLogger(io.Discard)}
		c := NewClient(srv.URL, nil, opts)
		defer c.Close()

		c.Connect()
		waitDone(t, c)
		assert.Empty(t, clock.Pending())
	})
}

func TestClientLifecycle(t *testing.T) {
	t.Run("EnsureConnected is a no-op on a healthy connection", func(t *testing.T) {
		srv, hits := streamServer(t)
		c := newTestClient(srv.URL, nil, tu.NewFakeClock())
		defer c.Close()

		c.Connect()
		tu.Eventually(t, 2*time.Second, func() bool { return c.State() == Open }, "stream opens")
		done := c.Done()

		c.EnsureConnected()
		c.EnsureConnected()

		assert.Equal(t, int32(1), hits.Load())
		assert.Equal(t, done, c.Done(), "connection must not be replaced")
	})

	t.Run("EnsureConnected opens when there is no connection", func(t *testing.T) {
		srv, hits := streamServer(t)
		c := newTestClient(srv.URL, nil, tu.NewFakeClock())
		defer c.Close()

		assert.Equal(t, Closed, c.State())
		c.EnsureConnected()
		tu.Eventually(t, 2*time.Second, func() bool { return c.State() == Open }, "stream opens")
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("EnsureConnected retries after the attempts are exhausted", func(t *testing.T) {
		srv, hits := failingServer(t)
		clock := tu.NewFakeClock()
		opts := Options{MaxReconnectAttempts: 1, BaseDelay: time.Second, Clock: clock, Logger: shared.NewLogger(io.Discard)}
		c := NewClient(srv.URL, nil, opts)
		defer c.Close()

		c.Connect()
		waitDone(t, c)
		clock.Advance(time.Second)
		waitDone(t, c)
		require.Empty(t, clock.Pending())

		c.EnsureConnected()
		waitDone(t, c)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("Connect closes the previous connection first", func(t *testing.T) {
		var live, peak atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := live.Add(1)
			defer live.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			<-r.Context().Done()
		}))
		defer srv.Close()

		c := newTestClient(srv.URL, nil, tu.NewFakeClock())
		c.Connect()
		tu.Eventually(t, 2*time.Second, func() bool { return c.State() == Open }, "first open")
		first := c.Done()

		c.Connect()
		select {
		case <-first:
		case <-time.After(2 * time.Second):
			t.Fatal("first connection was not torn down")
		}
		tu.Eventually(t, 2*time.Second, func() bool { return c.State() == Open }, "second open")

		c.Close()
		tu.Eventually(t, 2*time.Second, func() bool { return live.Load() == 0 }, "server sees no live connection")
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})
}

func TestClientReplaceDelivery(t *testing.T) {
	t.Run("a replaced connection delivers nothing once Connect returns", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := hits.Add(1)
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "data: {\"type\": \"first\", \"conn\": %d}\n\n", n)
			fmt.Fprintf(w, "data: {\"type\": \"second\", \"conn\": %d}\n\n", n)
			w.(http.Flusher).Flush()
			<-r.Context().Done()
		}))
		defer srv.Close()

		entered, release, replaced := make(chan struct{}), make(chan struct{}), make(chan struct{})
		var once sync.Once
		var late atomic.Int32
		var fromSecond atomic.Int32

		c := newTestClient(srv.URL, func(e Event) {
			var body struct {
				Conn int32 `json:"conn"`
			}
			assert.NoError(t, e.Decode(&body))
			once.Do(func() {
				close(entered)
				<-release
			})
			select {
			case <-replaced:
				if body.Conn == 1 {
					late.Add(1)
				}
			default:
			}
			if body.Conn == 2 {
				fromSecond.Add(1)
			}
		}, tu.NewFakeClock())
		defer c.Close()

		c.Connect()
		<-entered

		go func() {
			c.Connect()
			close(replaced)
		}()
		assert.Never(t, func() bool {
			select {
			case <-replaced:
				return true
			default:
				return false
			}
		}, 100*time.Millisecond, 5*time.Millisecond, "Connect returned while a handler call was in flight")

		close(release)
		select {
		case <-replaced:
		case <-time.After(2 * time.Second):
			t.Fatal("Connect did not return")
		}

		tu.Eventually(t, 2*time.Second, func() bool { return fromSecond.Load() == 2 }, "second connection delivers")
		assert.Zero(t, late.Load())
	})
}
