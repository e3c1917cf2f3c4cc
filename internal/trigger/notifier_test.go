package trigger

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

func okServer(t *testing.T, got chan<- JSONRPCRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req JSONRPCRequest
		json.NewDecoder(r.Body).Decode(&req)
		if got != nil {
			got <- req
		}
		resp := JSONRPCResponse{JSONRPC: "2.0", Result: json.RawMessage(`"ok"`), ID: req.ID}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func blogChange() repository.Change {
	return repository.Change{
		Sheet:      schema.BlogPosts,
		Action:     repository.ActionUpdated,
		Record:     record.New(map[string]string{"id": "pst_1", "title": "Hello", "status": "published"}),
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func register(t *testing.T, r *PluginRegistry, p *Plugin) {
	t.Helper()
	if err := r.Register(context.Background(), p); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestNotifier_DispatchesToSubscribedPlugins(t *testing.T) {
	got := make(chan JSONRPCRequest, 2)
	srv := okServer(t, got)

	registry := NewPluginRegistry(nil)
	register(t, registry, &Plugin{Name: "plugin-a", Endpoint: srv.URL, SubscribedSheets: []schema.Sheet{schema.BlogPosts}})
	register(t, registry, &Plugin{Name: "plugin-b", Endpoint: srv.URL, SubscribedSheets: []schema.Sheet{schema.BlogPosts, schema.Products}})

	notifier := NewNotifier(registry, NewRPCClient(0, time.Millisecond, 5*time.Second), time.Second, slog.New(slog.DiscardHandler))
	notifier.RecordChanged(context.Background(), blogChange())
	notifier.Wait()

	if len(got) != 2 {
		t.Fatalf("received: got %d, want 2", len(got))
	}
	req := <-got
	if req.Method != MethodRecordWritten {
		t.Errorf("method: got %q", req.Method)
	}
	params, _ := json.Marshal(req.Params)
	var p RecordWrittenParams
	if err := json.Unmarshal(params, &p); err != nil {
		t.Fatal(err)
	}
	if p.Sheet != "blog_posts" || p.Action != "updated" || p.ID != "pst_1" || p.Record["title"] != "Hello" {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestNotifier_SkipsUnsubscribedAndInactivePlugins(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
	}))
	defer srv.Close()

	registry := NewPluginRegistry(nil)
	register(t, registry, &Plugin{Name: "products-only", Endpoint: srv.URL, SubscribedSheets: []schema.Sheet{schema.Products}})
	register(t, registry, &Plugin{Name: "paused", Endpoint: srv.URL, SubscribedSheets: []schema.Sheet{schema.BlogPosts}, Status: PluginStatusInactive})

	notifier := NewNotifier(registry, NewRPCClient(0, time.Millisecond, 5*time.Second), time.Second, slog.New(slog.DiscardHandler))
	notifier.RecordChanged(context.Background(), blogChange())
	notifier.Wait()

	if received.Load() != 0 {
		t.Errorf("received: got %d, want 0", received.Load())
	}
}

func TestNotifier_LogsRPCErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var logged bool

	handler := slog.NewTextHandler(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		logged = true
		return len(p), nil
	}), nil)

	registry := NewPluginRegistry(nil)
	register(t, registry, &Plugin{Name: "failing", Endpoint: srv.URL, SubscribedSheets: []schema.Sheet{schema.BlogPosts}})

	notifier := NewNotifier(registry, NewRPCClient(0, time.Millisecond, 5*time.Second), time.Second, slog.New(handler))
	notifier.RecordChanged(context.Background(), blogChange())
	notifier.Wait()

	mu.Lock()
	defer mu.Unlock()
	if !logged {
		t.Error("expected error to be logged")
	}
}

func TestNotifier_OutlivesRequestContext(t *testing.T) {
	got := make(chan JSONRPCRequest, 1)
	srv := okServer(t, got)

	registry := NewPluginRegistry(nil)
	register(t, registry, &Plugin{Name: "a", Endpoint: srv.URL, SubscribedSheets: []schema.Sheet{schema.BlogPosts}})
	notifier := NewNotifier(registry, NewRPCClient(0, time.Millisecond, 5*time.Second), time.Second, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	notifier.RecordChanged(ctx, blogChange())
	cancel()
	notifier.Wait()

	if len(got) != 1 {
		t.Errorf("received: got %d, want 1", len(got))
	}
}

func TestNotifier_NoPlugins(t *testing.T) {
	notifier := NewNotifier(NewPluginRegistry(nil), NewRPCClient(0, time.Millisecond, 5*time.Second), time.Second, slog.New(slog.DiscardHandler))
	notifier.RecordChanged(context.Background(), blogChange())
	notifier.Wait()
}

// writerFunc adapts a function to the io.Writer interface.
type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}
