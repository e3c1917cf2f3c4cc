package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ryanbastic/go-sheetcms/internal/cache"
)

const readyTimeout = 3 * time.Second

// Pinger is satisfied by the tabular stores and the GCS image store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is one dependency probed by the readiness check. A failing
// optional backend degrades readiness without failing it.
type Backend struct {
	Name     string
	Pinger   Pinger
	Optional bool
}

// CacheStats reports sheet cache counters for the readiness body.
type CacheStats interface {
	Stats() cache.Stats
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	backends []Backend
	cache    CacheStats
	started  time.Time
	logger   *slog.Logger
}

func NewHealthHandler(backends []Backend, stats CacheStats, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{backends: backends, cache: stats, started: time.Now(), logger: logger}
}

type backendStatus struct {
	Status    string `json:"status"`
	Optional  bool   `json:"optional,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type cacheStatus struct {
	Sheets int    `json:"sheets"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

type readyzResponse struct {
	Status   string                   `json:"status"`
	Backends map[string]backendStatus `json:"backends,omitempty"`
	Cache    *cacheStatus             `json:"cache,omitempty"`
}

// Livez reports that the process can serve HTTP.
func (h *HealthHandler) Livez(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// Readyz pings every backend concurrently. It answers 503 only when a
// required backend is down.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := readyzResponse{Status: "ok", Backends: make(map[string]backendStatus, len(h.backends))}
	var mu sync.Mutex
	var g errgroup.Group
	for _, b := range h.backends {
		g.Go(func() error {
			start := time.Now()
			err := b.Pinger.Ping(ctx)
			bs := backendStatus{Status: "ok", Optional: b.Optional, LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				bs.Status = "error"
				bs.Error = err.Error()
			}
			mu.Lock()
			resp.Backends[b.Name] = bs
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, b := range h.backends {
		if resp.Backends[b.Name].Status == "ok" {
			continue
		}
		if !b.Optional {
			resp.Status = "unavailable"
			break
		}
		resp.Status = "degraded"
	}

	if h.cache != nil {
		s := h.cache.Stats()
		resp.Cache = &cacheStatus{Sheets: s.Entries, Hits: s.Hits, Misses: s.Misses}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		h.logger.Warn("readiness check failed", "status", resp.Status, "backends", resp.Backends)
	}
	if resp.Status == "unavailable" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
