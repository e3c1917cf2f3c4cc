package trigger

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ryanbastic/go-sheetcms/internal/cache"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
	"github.com/ryanbastic/go-sheetcms/internal/storage"
)

func newSheetStore(t *testing.T) (*SheetPluginStore, *storage.MemoryStore) {
	t.Helper()
	mem := storage.NewMemoryStore()
	reg := schema.DefaultRegistry()
	if _, err := storage.InitializeSheets(context.Background(), mem, reg); err != nil {
		t.Fatal(err)
	}
	repo := repository.New(mem, reg, cache.NewTTLCache(time.Minute), repository.WithLogger(slog.New(slog.DiscardHandler)))
	return NewSheetPluginStore(repo), mem
}

func TestSheetPluginStore_RegisterPersistsAndReloads(t *testing.T) {
	store, mem := newSheetStore(t)
	ctx := context.Background()

	r := NewPluginRegistry(store)
	p := &Plugin{
		Name:             "search-indexer",
		Endpoint:         "http://indexer:9000/rpc",
		SubscribedSheets: []schema.Sheet{schema.BlogPosts, schema.Products},
	}
	if err := r.Register(ctx, p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if rows := mem.Rows(string(schema.Webhooks)); len(rows) != 2 {
		t.Fatalf("webhooks sheet rows: got %d, want header + 1", len(rows))
	}

	reloaded := NewPluginRegistry(store)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := reloaded.Get(p.ID)
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.Name != p.Name || got.Endpoint != p.Endpoint || got.Status != PluginStatusActive {
		t.Errorf("reloaded plugin mismatch: %+v", got)
	}
	if len(got.SubscribedSheets) != 2 || got.SubscribedSheets[1] != schema.Products {
		t.Errorf("subscribed sheets: %v", got.SubscribedSheets)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not restored")
	}
}

func TestSheetPluginStore_StatusAndDelete(t *testing.T) {
	store, _ := newSheetStore(t)
	ctx := context.Background()
	r := NewPluginRegistry(store)

	a := &Plugin{Name: "a", Endpoint: "http://a/rpc", SubscribedSheets: []schema.Sheet{schema.FAQs}}
	b := &Plugin{Name: "b", Endpoint: "http://b/rpc", SubscribedSheets: []schema.Sheet{schema.FAQs}}
	register(t, r, a)
	register(t, r, b)

	if _, err := r.SetStatus(ctx, a.ID, PluginStatusInactive); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	plugins, err := store.ListPlugins(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(plugins) != 1 || plugins[0].ID != a.ID || plugins[0].Status != PluginStatusInactive {
		t.Errorf("unexpected stored plugins: %+v", plugins)
	}

	if err := store.DeletePlugin(ctx, b.ID); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("deleting twice: got %v", err)
	}
	if err := store.UpdatePluginStatus(ctx, "whk_missing", PluginStatusActive); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("updating missing: got %v", err)
	}
}

func TestPluginRegistry_StoreFailureLeavesRegistryUnchanged(t *testing.T) {
	store, mem := newSheetStore(t)
	r := NewPluginRegistry(store)
	mem.SetFailure(storage.ErrUnavailable)

	err := r.Register(context.Background(), &Plugin{Name: "x", Endpoint: "http://x/rpc"})
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if len(r.List()) != 0 {
		t.Error("plugin added despite store failure")
	}
}
