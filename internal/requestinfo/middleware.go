//
//  internal/requestinfo/middleware.go
//
//  Enrich middleware.  Parses the user agent, geolocates the client IP,
//  stores the result on the request context, and emits one structured
//  access-log line per request tagged with the tenant that served it.
//
//  Context
//  • Sits inside the tenant-routing middleware so the tenant id is
//    already on the context when the access line is written.
//

package requestinfo

import (
	"context"
	"net"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/versohq/verso/internal/tenantctx"
)

// Enrich attaches RequestInfo to the context and writes the access log
// line after the handler returns.
func Enrich(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &RequestInfo{
			UA:        parseUA(r.UserAgent()),
			Geo:       lookupGeo(clientIP(r)),
			Timestamp: time.Now().UTC(),
		}

		ctx := context.WithValue(r.Context(), ctxKey{}, info)
		// WrapResponseWriter keeps Flusher/Hijacker reachable downstream.
		rec := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(rec, r.WithContext(ctx))

		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status(rec),
			"duration_ms", time.Since(info.Timestamp).Milliseconds(),
			"ip", info.Geo.IP.String(),
			"country", info.Geo.CountryISO,
			"browser", info.UA.Browser,
			"os", info.UA.OS,
			"device", info.UA.Device,
			"bot", info.UA.IsBot,
		}
		if id, ok := tenantctx.Current(ctx); ok {
			fields = append(fields, "tenant", id.String())
		}
		zap.S().Infow("access", fields...)
	})
}

// status reads the recorded code; a handler that never writes is a 200.
func status(rec chimw.WrapResponseWriter) int {
	if s := rec.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

func clientIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
