package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ryanbastic/go-sheetcms/internal/circuitbreaker"
	"github.com/ryanbastic/go-sheetcms/internal/metrics"
	"github.com/ryanbastic/go-sheetcms/internal/retry"
)

// GuardOptions configures a GuardedStore.
type GuardOptions struct {
	// Timeout bounds every remote call; zero means no timeout.
	Timeout time.Duration
	// ReadRetry applies to ReadRange only. Writes are never retried since
	// an append or delete that timed out may still have been applied.
	ReadRetry retry.Config
	Breaker   *circuitbreaker.Breaker
	Logger    *slog.Logger
}

// GuardedStore decorates a TabularStore with timeouts, read retries, a
// circuit breaker and call metrics. Every failure that means the store
// could not serve the call is reported as ErrUnavailable.
type GuardedStore struct {
	inner TabularStore
	opts  GuardOptions
}

var _ TabularStore = (*GuardedStore)(nil)

// NewGuardedStore wraps inner.
func NewGuardedStore(inner TabularStore, opts GuardOptions) *GuardedStore {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	opts.ReadRetry.Retryable = retryable
	opts.ReadRetry.Timeout = 0
	if opts.ReadRetry.Logger == nil {
		opts.ReadRetry.Logger = opts.Logger
	}
	return &GuardedStore{inner: inner, opts: opts}
}

func (g *GuardedStore) ReadRange(ctx context.Context, r Range) ([][]string, error) {
	return retry.WithRetry(ctx, g.opts.ReadRetry, func(ctx context.Context) ([][]string, error) {
		var rows [][]string
		err := g.call(ctx, "read", r.Sheet, func(ctx context.Context) error {
			var err error
			rows, err = g.inner.ReadRange(ctx, r)
			return err
		})
		return rows, err
	})
}

func (g *GuardedStore) UpdateRange(ctx context.Context, r Range, values [][]string) error {
	return g.call(ctx, "update", r.Sheet, func(ctx context.Context) error {
		return g.inner.UpdateRange(ctx, r, values)
	})
}

func (g *GuardedStore) AppendRow(ctx context.Context, sheet string, values []string) error {
	return g.call(ctx, "append", sheet, func(ctx context.Context) error {
		return g.inner.AppendRow(ctx, sheet, values)
	})
}

func (g *GuardedStore) DeleteRows(ctx context.Context, sheet string, start, end int) error {
	return g.call(ctx, "delete", sheet, func(ctx context.Context) error {
		return g.inner.DeleteRows(ctx, sheet, start, end)
	})
}

// Ping bypasses the breaker so readiness reflects the store itself.
func (g *GuardedStore) Ping(ctx context.Context) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	if err := g.inner.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (g *GuardedStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.opts.Timeout > 0 {
		return context.WithTimeout(ctx, g.opts.Timeout)
	}
	return ctx, func() {}
}

func (g *GuardedStore) call(ctx context.Context, op, sheet string, fn func(context.Context) error) error {
	start := time.Now()
	run := func() error {
		ctx, cancel := g.withTimeout(ctx)
		defer cancel()
		return fn(ctx)
	}

	var err error
	if g.opts.Breaker != nil {
		err = g.opts.Breaker.Execute(run)
	} else {
		err = run()
	}

	result := "ok"
	if err != nil {
		err = unavailable(op, err)
		result = "error"
		if errors.Is(err, ErrUnavailable) {
			result = "unavailable"
		}
		g.opts.Logger.Warn("store call failed", "op", op, "sheet", sheet, "error", err)
	}
	metrics.ObserveStoreCall(op, sheet, result, time.Since(start))
	return err
}

// unavailable wraps timeouts and breaker rejections in ErrUnavailable.
func unavailable(op string, err error) error {
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return err
}

func retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) && !errors.Is(err, circuitbreaker.ErrCircuitOpen)
}

// IsOutage reports whether err means the store itself failed, as opposed to
// a rejected request. Use it as the breaker's failure filter.
func IsOutage(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
