package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jbx/internal/shared"
)

type routesHandler struct {
	routes []string
}

func (h routesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, r.Method+" "+r.URL.Path)
}

func (h routesHandler) Routes() []string { return h.routes }

func TestBasicRouter(t *testing.T) {
	t.Run("routes by method and path", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodGet, "/api/library/{id}", func(w http.ResponseWriter, req *http.Request) {
			writeMessage(w, http.StatusOK, req.PathValue("id"))
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/library/abc", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"abc"`) {
			t.Errorf("expected path value in body, got %s", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/library/abc", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("applies middleware in the order added", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.HandleFunc(http.MethodGet, "/", func(w http.ResponseWriter, _ *http.Request) {
			order = append(order, "handler")
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("registers every route of a Handler", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handler(routesHandler{routes: []string{"GET /a", "DELETE /b"}})

		for _, tc := range []struct{ method, path string }{{http.MethodGet, "/a"}, {http.MethodDelete, "/b"}} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("%s %s: expected 200, got %d", tc.method, tc.path, rec.Code)
			}
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Recover turns a panic into a JSON error", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)

		r := NewBasicRouter()
		r.Use(Recover(logger))
		r.HandleFunc(http.MethodGet, "/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"success":false`) {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
		if !strings.Contains(buf.String(), "handler panic") {
			t.Errorf("expected panic to be logged, got %q", buf.String())
		}
	})

	t.Run("Logging records the response status", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)
		shared.SetLogLevel(logger, log.DebugLevel)

		h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tea", nil))

		if !strings.Contains(buf.String(), "418") || !strings.Contains(buf.String(), "/tea") {
			t.Errorf("unexpected log %q", buf.String())
		}
	})
}
