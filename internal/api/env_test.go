package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ryanbastic/go-sheetcms/internal/auth"
	"github.com/ryanbastic/go-sheetcms/internal/cache"
	"github.com/ryanbastic/go-sheetcms/internal/imagehost"
	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
	"github.com/ryanbastic/go-sheetcms/internal/storage"
	"github.com/ryanbastic/go-sheetcms/internal/trigger"
)

const testPassword = "s3cret-pass"

type testEnv struct {
	server   http.Handler
	mem      *storage.MemoryStore
	repo     *repository.Repository
	issuer   *auth.Issuer
	accounts *auth.Accounts
	objects  *imagehost.MemoryStore
	plugins  *trigger.PluginRegistry
	users    int
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	mem := storage.NewMemoryStore()
	reg := schema.DefaultRegistry()
	if _, err := storage.InitializeSheets(context.Background(), mem, reg); err != nil {
		t.Fatal(err)
	}
	guarded := storage.NewGuardedStore(mem, storage.GuardOptions{Logger: testLogger()})
	sheetCache := cache.NewTTLCache(time.Minute)
	repo := repository.New(guarded, reg, sheetCache, repository.WithLogger(testLogger()))

	issuer, err := auth.NewIssuer("test-secret-0123456789", "sheetcms", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	objects := imagehost.NewMemoryStore("https://img.test")
	plugins := trigger.NewPluginRegistry(trigger.NewSheetPluginStore(repo))

	deps := Deps{
		Logger:   testLogger(),
		Repo:     repo,
		Issuer:   issuer,
		Images:   imagehost.New(objects, 1<<20),
		Plugins:  plugins,
		Backends: []Backend{{Name: "spreadsheet", Pinger: guarded}},
		Cache:    sheetCache,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testEnv{
		server:   NewServer(deps),
		mem:      mem,
		repo:     repo,
		issuer:   issuer,
		accounts: auth.NewAccounts(repo),
		objects:  objects,
		plugins:  plugins,
	}
}

// user creates an active account with role and returns it with a token.
func (e *testEnv) user(t *testing.T, role auth.Role) (record.Record, string) {
	t.Helper()
	e.users++
	rec, err := e.accounts.Create(context.Background(), auth.NewAccount{
		Username: fmt.Sprintf("%s%d", role, e.users),
		Email:    fmt.Sprintf("%s%d@example.com", role, e.users),
		Password: testPassword,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create %s: %v", role, err)
	}
	token, _, err := e.issuer.Issue(auth.IdentityOf(rec))
	if err != nil {
		t.Fatal(err)
	}
	return rec, token
}

func (e *testEnv) token(t *testing.T, role auth.Role) string {
	t.Helper()
	_, token := e.user(t, role)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status: got %d, want %d\nbody: %s", w.Code, want, w.Body.String())
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v\nbody: %s", err, w.Body.String())
	}
	return v
}

// errorDetail reads the detail of a huma problem response.
func errorDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[struct {
		Detail string `json:"detail"`
	}](t, w).Detail
}
