package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ryanbastic/go-sheetcms/internal/auth"
	"github.com/ryanbastic/go-sheetcms/internal/imagehost"
	"github.com/ryanbastic/go-sheetcms/internal/metrics"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/trigger"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Logger   *slog.Logger
	Repo     *repository.Repository
	Issuer   *auth.Issuer
	Images   *imagehost.Host
	Plugins  *trigger.PluginRegistry
	Backends []Backend
	Cache    CacheStats

	CORSOrigins []string
	RateLimit   RateLimit
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(d Deps) http.Handler {
	logger := d.Logger
	mux := chi.NewRouter()

	mux.Use(RequestID)
	if d.TrustProxy {
		mux.Use(middleware.RealIP)
	}
	mux.Use(Logging(logger))
	mux.Use(Recovery(logger))
	mux.Use(SecurityHeaders)
	mux.Use(CORS(d.CORSOrigins))
	mux.Use(metrics.Metrics)
	mux.Use(d.RateLimit.Limit())

	mux.Handle("/metrics", promhttp.Handler())

	health := NewHealthHandler(d.Backends, d.Cache, logger)
	mux.Get("/api/livez", health.Livez)
	mux.Get("/api/readyz", health.Readyz)
	mux.Get("/api/health", health.Readyz)

	config := huma.DefaultConfig("sheetcms", "1.0.0")
	config.OpenAPIPath = "/api/openapi"
	config.DocsPath = "/api/docs"
	config.SchemasPath = "/api/schemas"
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}
	api := humachi.New(mux, config)

	accounts := auth.NewAccounts(d.Repo)
	g := &guard{api: api, issuer: d.Issuer, logger: logger}

	content := NewResourceHandler(d.Repo, g, logger)
	for _, res := range resources() {
		registerResourceRoutes(api, content, res)
		if res.path == "blog" {
			registerBlogRoutes(api, content, res)
		}
	}
	registerAuthRoutes(api, NewAuthHandler(accounts, d.Issuer, g, logger))
	registerUserRoutes(api, NewUserHandler(d.Repo, accounts, logger), g)
	registerSettingRoutes(api, NewSettingHandler(d.Repo, logger), g)
	registerStatsRoutes(api, NewStatsHandler(d.Repo, logger), g)
	registerPluginRoutes(api, NewPluginHandler(d.Plugins, d.Repo.Registry(), logger), g)

	images := NewImageHandler(d.Repo, d.Images, logger)
	registerImageRoutes(api, images, g)
	mux.With(g.requireHTTP(auth.RoleEditor)).Post("/api/images", images.Upload)

	return mux
}
