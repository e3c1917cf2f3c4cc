package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratesUniqueIDs(t *testing.T) {
	handler := RequestID(okHandler)
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil)).Header().Get("X-Request-ID")
		if id == "" {
			t.Fatal("X-Request-ID header not set")
		}
		if ids[id] {
			t.Errorf("duplicate request ID: %s", id)
		}
		ids[id] = true
	}
}

func TestRequestID_StoredInContext(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))
	w := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen != w.Header().Get("X-Request-ID") {
		t.Errorf("context id %q, header id %q", seen, w.Header().Get("X-Request-ID"))
	}
}

func TestRequestID_IncomingHeader(t *testing.T) {
	tests := []struct {
		name, incoming string
		reused         bool
	}{
		{"proxy id", "edge-7f3a.42", true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", maxRequestIDLength+1), false},
		{"injection", "abc\r\nX-Evil: 1", false},
		{"spaces", "a b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", tt.incoming)
			got := serve(RequestID(okHandler), req).Header().Get("X-Request-ID")
			if (got == tt.incoming) != tt.reused {
				t.Errorf("got %q for incoming %q, reused want %v", got, tt.incoming, tt.reused)
			}
		})
	}
}

func TestLogging_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	for _, tt := range []struct {
		path   string
		status int
		level  string
	}{
		{"/api/blog", http.StatusOK, "INFO"},
		{"/api/blog/x", http.StatusNotFound, "WARN"},
		{"/api/stats", http.StatusServiceUnavailable, "ERROR"},
		{"/api/livez", http.StatusOK, "DEBUG"},
		{"/api/readyz", http.StatusServiceUnavailable, "ERROR"},
	} {
		buf.Reset()
		handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		w := serve(handler, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.status {
			t.Errorf("%s: status %d, want %d", tt.path, w.Code, tt.status)
		}
		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("%s: decode log: %v", tt.path, err)
		}
		if entry["level"] != tt.level || entry["path"] != tt.path {
			t.Errorf("%s: logged %v", tt.path, entry)
		}
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	expectStatus(t, w, http.StatusInternalServerError)
	if got := decode[errorResponse](t, w); got.Error != "internal server error" {
		t.Errorf("error: got %q", got.Error)
	}

	if w := serve(Recovery(testLogger())(okHandler), httptest.NewRequest(http.MethodGet, "/", nil)); w.Code != http.StatusOK {
		t.Errorf("no panic: got %d", w.Code)
	}
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	handler := Recovery(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Errorf("recovered %v, want ErrAbortHandler", v)
		}
	}()
	serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	t.Error("ErrAbortHandler was swallowed")
}

func TestSecurityHeaders(t *testing.T) {
	w := serve(SecurityHeaders(okHandler), httptest.NewRequest(http.MethodGet, "/", nil))
	for k, v := range map[string]string{
		"X-Content-Type-Options":       "nosniff",
		"X-Frame-Options":              "SAMEORIGIN",
		"Cross-Origin-Resource-Policy": "cross-origin",
	} {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s: got %q, want %q", k, got, v)
		}
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://admin.example.com"})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/blog", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	w := serve(handler, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Errorf("allowed origin: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/blog", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(handler, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
	expectStatus(t, w, http.StatusOK)
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/blog", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := serve(handler, req)

	expectStatus(t, w, http.StatusNoContent)
	if called {
		t.Error("preflight reached the handler")
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Errorf("allow headers: %q", w.Header().Get("Access-Control-Allow-Headers"))
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin: %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	handler := RateLimit{Max: 3, Window: time.Hour}.Limit()(okHandler)
	from := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/blog", nil)
		req.RemoteAddr = addr
		return serve(handler, req)
	}

	for i := 0; i < 3; i++ {
		expectStatus(t, from("10.0.0.1:5000"), http.StatusOK)
	}
	w := from("10.0.0.1:6000")
	expectStatus(t, w, http.StatusTooManyRequests)
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}
	expectStatus(t, from("10.0.0.2:5000"), http.StatusOK)
}

func TestRateLimit_Disabled(t *testing.T) {
	handler := RateLimit{}.Limit()(okHandler)
	for i := 0; i < 50; i++ {
		expectStatus(t, serve(handler, httptest.NewRequest(http.MethodGet, "/", nil)), http.StatusOK)
	}
}

func TestStatusWriter(t *testing.T) {
	inner := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: inner, status: http.StatusOK}
	sw.WriteHeader(http.StatusCreated)
	if sw.status != http.StatusCreated || inner.Code != http.StatusCreated {
		t.Errorf("status %d, inner %d", sw.status, inner.Code)
	}
}

func TestMiddlewareChain_PanicKeepsRequestID(t *testing.T) {
	logger := testLogger()
	handler := RequestID(Logging(logger)(Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))))
	w := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	expectStatus(t, w, http.StatusInternalServerError)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should still be set even with panic")
	}
}

func TestServer_RateLimitExemptsProbes(t *testing.T) {
	e := newTestEnv(t, func(d *Deps) { d.RateLimit = RateLimit{Max: 2, Window: time.Hour} })
	expectStatus(t, e.do(t, http.MethodGet, "/api/faqs", "", nil), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodGet, "/api/faqs", "", nil), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodGet, "/api/faqs", "", nil), http.StatusTooManyRequests)
	expectStatus(t, e.do(t, http.MethodGet, "/api/livez", "", nil), http.StatusOK)
}
