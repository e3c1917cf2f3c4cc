package auth

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

func newTestAccounts(t *testing.T) *Accounts {
	t.Helper()
	mem := storage.NewMemoryStore()
	reg := schema.DefaultRegistry()
	if _, err := storage.InitializeSheets(context.Background(), mem, reg); err != nil {
		t.Fatal(err)
	}
	repo := repository.New(mem, reg, cache.NewTTLCache(time.Minute), repository.WithLogger(slog.New(slog.DiscardHandler)))
	return NewAccounts(repo)
}

func createAlice(t *testing.T, a *Accounts) string {
	t.Helper()
	rec, err := a.Create(context.Background(), NewAccount{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "s3cret-pass",
		Role:     RoleAdmin,
	})
	if err != nil {
		t.Fatal(err)
	}
	return rec.ID()
}

func TestAccounts_CreateStoresHash(t *testing.T) {
	a := newTestAccounts(t)
	id := createAlice(t, a)

	rec, err := a.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Get("email") != "alice@example.com" {
		t.Errorf("email: got %q", rec.Get("email"))
	}
	if rec.Get("status") != StatusActive || rec.Get("role") != "admin" {
		t.Errorf("status %q role %q", rec.Get("status"), rec.Get("role"))
	}
	if h := rec.Get("password_hash"); h == "" || h == "s3cret-pass" {
		t.Errorf("password stored as %q", h)
	}
	if _, ok := Public(rec).Fields["password_hash"]; ok {
		t.Error("Public kept password_hash")
	}
}

func TestAccounts_CreateValidation(t *testing.T) {
	a := newTestAccounts(t)
	createAlice(t, a)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewAccount
		want error
	}{
		{"short username", NewAccount{Username: "al", Email: "x@example.com", Password: "s3cret-pass"}, ErrInvalidAccount},
		{"bad email", NewAccount{Username: "bobby", Email: "bob at example", Password: "s3cret-pass"}, ErrInvalidAccount},
		{"bad role", NewAccount{Username: "bobby", Email: "bob@example.com", Password: "s3cret-pass", Role: "owner"}, ErrInvalidAccount},
		{"weak password", NewAccount{Username: "bobby", Email: "bob@example.com", Password: "short"}, ErrWeakPassword},
		{"duplicate email", NewAccount{Username: "bobby", Email: "ALICE@example.com", Password: "s3cret-pass"}, ErrDuplicateEmail},
		{"duplicate username", NewAccount{Username: "alice", Email: "bob@example.com", Password: "s3cret-pass"}, ErrDuplicateUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Create(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAccounts_Authenticate(t *testing.T) {
	a := newTestAccounts(t)
	id := createAlice(t, a)
	ctx := context.Background()

	rec, err := a.Authenticate(ctx, "ALICE@example.com", "s3cret-pass")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID() != id || rec.Get("last_login") == "" {
		t.Errorf("got %v", rec.Fields)
	}

	if _, err := a.Authenticate(ctx, "alice@example.com", "wrong-pass"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := a.Authenticate(ctx, "nobody@example.com", "s3cret-pass"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("unknown email: got %v", err)
	}

	if _, err := a.SetStatus(ctx, id, StatusInactive); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Authenticate(ctx, "alice@example.com", "s3cret-pass"); !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("inactive: got %v", err)
	}
	if _, err := a.Active(ctx, id); !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("Active on inactive: got %v", err)
	}
}

func TestAccounts_UpdateAndChangePassword(t *testing.T) {
	a := newTestAccounts(t)
	id := createAlice(t, a)
	ctx := context.Background()

	rec, err := a.Update(ctx, id, AccountChanges{Username: "alice2", Role: RoleEditor})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Get("username") != "alice2" || rec.Get("role") != "editor" || rec.Get("email") != "alice@example.com" {
		t.Errorf("got %v", rec.Fields)
	}

	if err := a.ChangePassword(ctx, id, "nope-nope", "brand-new-pass"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("wrong current: got %v", err)
	}
	if err := a.ChangePassword(ctx, id, "s3cret-pass", "brand-new-pass"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Authenticate(ctx, "alice@example.com", "brand-new-pass"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if _, err := a.SetStatus(ctx, id, "frozen"); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("bad status: got %v", err)
	}
}

func TestAccounts_Delete(t *testing.T) {
	a := newTestAccounts(t)
	id := createAlice(t, a)
	ctx := context.Background()

	if err := a.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := a.Delete(ctx, id); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("second delete: got %v", err)
	}
	if _, err := a.Get(ctx, id); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("get: got %v", err)
	}
}
