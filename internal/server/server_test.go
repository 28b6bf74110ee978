package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/samse/lottiekit/assets"
	"github.com/samse/lottiekit/internal/render"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/samse/lottiekit/internal/source"
	"github.com/samse/lottiekit/internal/task"
	tu "github.com/samse/lottiekit/internal/testing"
)

func TestBasicRouter(t *testing.T) {
	t.Run("method patterns", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("pong"))
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
			t.Errorf("expected 200 pong, got %d %q", rec.Code, rec.Body.String())
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
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
		r.Handle("", "/", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			order = append(order, "handler")
		}))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("unexpected order %s", got)
		}
	})

	t.Run("patterns", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handler(NewCompositionHandler(assets.FS))
		r.Handle(http.MethodGet, "/healthz", http.NotFoundHandler())

		want := []string{"GET /compositions", "GET /compositions/{name}", "GET /healthz"}
		if got := r.Patterns(); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("Patterns() = %v, want %v", got, want)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("logging records status", func(t *testing.T) {
		var buf bytes.Buffer
		h := Logging(shared.NewLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusTeapot)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tea", nil))

		out := buf.String()
		if !strings.Contains(out, "status=418") || !strings.Contains(out, "path=/tea") {
			t.Errorf("unexpected log line %q", out)
		}
	})

	t.Run("recover", func(t *testing.T) {
		h := Recover(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func newTestRouter(t *testing.T) *BasicRouter {
	t.Helper()
	resolver, err := source.NewResolver(source.ResolverOpts{
		Executor:  task.Inline,
		Assets:    assets.FS,
		Resources: assets.Bundle{},
	})
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	t.Cleanup(func() { resolver.Close() })

	cache := fstest.MapFS{
		"cached.json": {Data: []byte(tu.MinimalComposition)},
		"pulse.json":  {Data: []byte(`{"shadowed":true}`)},
	}

	r := NewBasicRouter()
	r.Use(Recover(nil))
	r.Handler(NewCompositionHandler(assets.FS, cache))
	r.Handler(NewInspectHandler(resolver, render.Platform{APILevel: 24}, render.Automatic))
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestCompositionHandler(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantBody   string
	}{
		{"bundled asset", "/compositions/pulse.json", http.StatusOK, `"nm": "pulse"`},
		{"cached file", "/compositions/cached.json", http.StatusOK, `"nm":"minimal"`},
		{"missing", "/compositions/nope.json", http.StatusNotFound, "composition not found"},
		{"listing", "/compositions", http.StatusOK, `"cached.json","loading.json","pulse.json"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, r, tt.target)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("expected body to contain %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestCompositionHandlerRejectsPaths(t *testing.T) {
	for _, name := range []string{"../config.toml", "sub/file.json", "."} {
		req := httptest.NewRequest(http.MethodGet, "/compositions/x", nil)
		req.SetPathValue("name", name)
		rec := httptest.NewRecorder()
		NewCompositionHandler(assets.FS).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestInspectHandler(t *testing.T) {
	r := newTestRouter(t)

	t.Run("report", func(t *testing.T) {
		rec := get(t, r, "/inspect?source=res:1")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		var report map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if report["name"] != "loading" || report["render_mode"] != "software" {
			t.Errorf("unexpected report %v", report)
		}
	})

	tests := []struct {
		target     string
		wantStatus int
	}{
		{"/inspect", http.StatusBadRequest},
		{"/inspect?source=res:x", http.StatusBadRequest},
		{"/inspect?source=res:99", http.StatusNotFound},
		{"/inspect?source=asset:missing.json", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if rec := get(t, r, tt.target); rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{shared.ErrMissingArgument, http.StatusBadRequest},
		{shared.ErrMarkerNotFound, http.StatusBadRequest},
		{shared.NewLoadError(shared.ErrNotFound, "open", "x", nil), http.StatusNotFound},
		{shared.NewLoadError(shared.ErrMalformedData, "parse", "x", nil), http.StatusUnprocessableEntity},
		{shared.NewLoadError(shared.ErrNetwork, "fetch", "x", nil), http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", context.Canceled), http.StatusServiceUnavailable},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	router := newTestRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, router, nil) }()

	var resp *http.Response
	for range 50 {
		if resp, err = http.Get("http://" + addr + "/compositions/pulse.json"); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
