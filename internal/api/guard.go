package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-sheetcms/internal/auth"
	"github.com/ryanbastic/go-sheetcms/internal/metrics"
)

// guard authenticates bearer tokens from their signed claims alone; the
// store is not read per request.
type guard struct {
	api    huma.API
	issuer *auth.Issuer
	logger *slog.Logger
}

func (g *guard) authenticate(header string) (auth.Identity, error) {
	token, err := auth.BearerToken(header)
	if err != nil {
		return auth.Identity{}, err
	}
	return g.issuer.Verify(token)
}

// require rejects requests without a valid token for a role of at least min.
func (g *guard) require(min auth.Role) huma.Middlewares {
	return huma.Middlewares{func(ctx huma.Context, next func(huma.Context)) {
		id, err := g.authenticate(ctx.Header("Authorization"))
		if err == nil && !id.Role.AtLeast(min) {
			err = auth.ErrForbidden
		}
		if err != nil {
			status, msg := classify(err)
			metrics.AuthFailure(status)
			if status >= 500 {
				g.logger.Warn("authentication failed", "error", err)
			}
			huma.WriteErr(g.api, ctx, status, msg)
			return
		}
		next(huma.WithContext(ctx, auth.WithIdentity(ctx.Context(), id)))
	}}
}

// optional attaches the caller's identity when a valid token is present and
// otherwise lets the request through anonymously.
func (g *guard) optional() huma.Middlewares {
	return huma.Middlewares{func(ctx huma.Context, next func(huma.Context)) {
		header := ctx.Header("Authorization")
		if header == "" {
			next(ctx)
			return
		}
		id, err := g.authenticate(header)
		if err != nil {
			next(ctx)
			return
		}
		next(huma.WithContext(ctx, auth.WithIdentity(ctx.Context(), id)))
	}}
}

// requireHTTP is require for routes served outside huma.
func (g *guard) requireHTTP(min auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := g.authenticate(r.Header.Get("Authorization"))
			if err == nil && !id.Role.AtLeast(min) {
				err = auth.ErrForbidden
			}
			if err != nil {
				status, msg := classify(err)
				metrics.AuthFailure(status)
				writeError(w, status, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// bearer marks an operation as requiring a token in the OpenAPI document.
var bearer = []map[string][]string{{"bearer": {}}}

// caller returns the authenticated identity, if any.
func caller(ctx context.Context) (auth.Identity, bool) {
	return auth.FromContext(ctx)
}
