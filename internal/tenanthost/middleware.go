// internal/tenanthost/middleware.go
//
// Host-based tenant routing middleware.
//
// Context
// -------
// This is the request-entry component.  Per request it walks the state
// machine Received → Domain Extracted → Resolved | Rejected → (pipeline)
// → Context Cleared:
//
//   1. Extract the Host header; missing or malformed → 400.
//   2. Resolve through the configuration resolver; unknown → a generic
//      404 with no detail (no domain enumeration), registry unreachable
//      on a cold miss → 503 so clients may retry.
//   3. Install the tenant identity and the resolved Connection on the
//      request context, then run the downstream pipeline inside
//      tenantctx.RunWith.  Clearing is inherent: the identity lives on
//      the derived context and dies with the request.
//
// Notes
// -----
//   - Installation strictly precedes any downstream handler; no handler
//     can observe a request on a tenant route without an identity.
//   - Oxford commas, two spaces after periods.
package tenanthost

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/versohq/verso/internal/metrics"
	"github.com/versohq/verso/internal/registry"
	"github.com/versohq/verso/internal/resolver"
	"github.com/versohq/verso/internal/tenantctx"
)

// DomainResolver is the slice of *resolver.Resolver the middleware needs.
type DomainResolver interface {
	Resolve(ctx context.Context, domain string) (*registry.Connection, error)
}

// connKey carries the resolved Connection for downstream handlers.
type connKey struct{}

// Conn returns the Connection installed by Middleware, if any.
func Conn(ctx context.Context) (*registry.Connection, bool) {
	c, ok := ctx.Value(connKey{}).(*registry.Connection)
	return c, ok
}

// Middleware resolves the Host header to a Connection and scopes the
// tenant identity to the request.
func Middleware(res DomainResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			domain := resolver.Normalize(r.Host)
			if domain == "" {
				http.Error(w, "missing host header", http.StatusBadRequest)
				return
			}

			conn, err := res.Resolve(r.Context(), domain)
			if err != nil {
				switch {
				case errors.Is(err, resolver.ErrUnknownDomain):
					metrics.UnknownDomainTotal.Inc()
					// Deliberately indistinguishable from any other 404.
					http.NotFound(w, r)
				case errors.Is(err, resolver.ErrConfigUnavailable):
					zap.L().Error("configuration unavailable",
						zap.String("domain", domain), zap.Error(err))
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
					// Client went away mid-resolve; nothing to write.
				default:
					zap.L().Error("tenant resolution failed",
						zap.String("domain", domain), zap.Error(err))
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
				return
			}

			_ = tenantctx.RunWith(r.Context(), conn.ID, func(ctx context.Context) error {
				ctx = context.WithValue(ctx, connKey{}, conn)
				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			})
		})
	}
}

// Require guards routes that must not run without a resolved tenant.
// Useful for sub-routers mounted outside the main tenant pipeline.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tenantctx.Has(r.Context()) {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
