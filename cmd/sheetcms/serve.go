package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryanbastic/go-sheetcms/internal/api"
	"github.com/ryanbastic/go-sheetcms/internal/auth"
	"github.com/ryanbastic/go-sheetcms/internal/imagehost"
	"github.com/ryanbastic/go-sheetcms/internal/trigger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger

	a.cache.Start()
	defer a.cache.Stop()
	if err := a.registerCacheMetrics(); err != nil {
		logger.Warn("cache metrics not registered", "error", err)
	}

	backends := []api.Backend{{Name: "spreadsheet", Pinger: a.store}}

	var objects imagehost.ObjectStore
	if cfg.ImageBucket != "" {
		gcs, err := imagehost.NewGCSStore(ctx, cfg.ImageBucket, cfg.ImagePublicURL, cfg.GoogleCredentialsFile)
		if err != nil {
			return fmt.Errorf("open image bucket: %w", err)
		}
		defer gcs.Close()
		objects = gcs
		backends = append(backends, api.Backend{Name: "images", Pinger: gcs, Optional: true})
		logger.Info("image offload enabled", "bucket", cfg.ImageBucket)
	} else {
		objects = imagehost.NewMemoryStore(cfg.ImagePublicURL)
		logger.Warn("IMAGE_BUCKET not set, uploaded images are kept in memory")
	}

	plugins := trigger.NewPluginRegistry(trigger.NewSheetPluginStore(a.repo))
	if err := plugins.Load(ctx); err != nil {
		return fmt.Errorf("load webhooks: %w", err)
	}
	rpc := trigger.NewRPCClient(cfg.TriggerRetryMax, cfg.TriggerRetryBackoff, cfg.TriggerRPCTimeout)
	deliveryTimeout := time.Duration(cfg.TriggerRetryMax+1) * (cfg.TriggerRPCTimeout + cfg.TriggerRetryBackoff)
	notifier := trigger.NewNotifier(plugins, rpc, deliveryTimeout, logger)
	a.repo.AddObserver(notifier)
	logger.Info("webhooks loaded", "count", len(plugins.List()))

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry)
	if err != nil {
		return err
	}

	handler := api.NewServer(api.Deps{
		Logger:   logger,
		Repo:     a.repo,
		Issuer:   issuer,
		Images:   imagehost.New(objects, cfg.ImageMaxBytes),
		Plugins:  plugins,
		Backends: backends,
		Cache:    a.cache,

		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   api.RateLimit{Max: cfg.RateLimitMax, Window: cfg.RateLimitWindow},
		TrustProxy:  cfg.TrustProxy,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Port, "backend", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	notifier.Wait()

	logger.Info("shutdown complete")
	return nil
}
