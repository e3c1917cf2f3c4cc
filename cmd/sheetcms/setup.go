package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ryanbastic/go-sheetcms/internal/cache"
	"github.com/ryanbastic/go-sheetcms/internal/circuitbreaker"
	"github.com/ryanbastic/go-sheetcms/internal/config"
	"github.com/ryanbastic/go-sheetcms/internal/metrics"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/retry"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
	"github.com/ryanbastic/go-sheetcms/internal/storage"
)

// app holds the pieces every command shares.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *schema.Registry
	store    *storage.GuardedStore
	cache    *cache.TTLCache
	repo     *repository.Repository
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// setup loads configuration and opens the spreadsheet. The in-memory backend
// starts empty, so its headers are written straight away.
func setup(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	registry := schema.DefaultRegistry()
	if cfg.SchemaConfigPath != "" {
		sc, err := config.LoadSchemaConfig(cfg.SchemaConfigPath)
		if err != nil {
			return nil, err
		}
		if err := sc.Apply(registry); err != nil {
			return nil, err
		}
		logger.Info("schema extensions applied", "path", cfg.SchemaConfigPath)
	}

	var inner storage.TabularStore
	switch cfg.StoreBackend {
	case config.BackendMemory:
		inner = storage.NewMemoryStore()
		logger.Warn("using in-memory store, data is lost on exit")
	default:
		sheets, err := storage.NewSheetsStore(ctx, cfg.SpreadsheetID, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("open spreadsheet: %w", err)
		}
		inner = sheets
	}

	breaker := circuitbreaker.New(cfg.BreakerMaxFailures, cfg.BreakerResetTimeout,
		circuitbreaker.WithFailureFilter(storage.IsOutage),
		circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
			logger.Warn("store circuit breaker state changed", "from", from.String(), "to", to.String())
		}),
	)
	store := storage.NewGuardedStore(inner, storage.GuardOptions{
		Timeout: cfg.StoreTimeout,
		ReadRetry: retry.Config{
			MaxRetries: cfg.StoreRetryMax,
			BaseDelay:  cfg.StoreRetryBackoff,
		},
		Breaker: breaker,
		Logger:  logger,
	})

	if cfg.StoreBackend == config.BackendMemory {
		if _, err := storage.InitializeSheets(ctx, store, registry); err != nil {
			return nil, err
		}
	}

	c := cache.NewTTLCache(cfg.CacheTTL)
	repo := repository.New(store, registry, c, repository.WithLogger(logger))

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		store:    store,
		cache:    c,
		repo:     repo,
	}, nil
}

// registerCacheMetrics exports cache counters on /metrics.
func (a *app) registerCacheMetrics() error {
	return prometheus.Register(metrics.NewCacheCollector(a.cache))
}
