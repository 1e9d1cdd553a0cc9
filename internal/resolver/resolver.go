// internal/resolver/resolver.go
//
// Cache-first domain → Connection resolution.
//
// Context
// -------
// Every request needs the Connection record for its Host header, and a
// registry round-trip per request is not acceptable.  The resolver keeps
// a sync.Map of normalized domain → cached entry, refreshed through a
// singleflight group so a cold or expired domain is fetched once no
// matter how many requests race on it.
//
// Consistency contract:
//
//   - A cache hit within the TTL performs no I/O.
//   - After an administrative write, callers invoke Invalidate; until
//     then the resolver only promises "eventually reflects registry
//     state."
//   - A stale entry may be served past its TTL when the registry is
//     unreachable, but only ever for the *same* domain.  A domain is
//     never answered with another tenant's record; on any doubt the
//     resolver prefers a miss.
//
// Notes
// -----
//   - Reads are lock-free (sync.Map); writes touch one key.
//   - Registry lookups respect the caller's cancellation via DoChan.
//   - Oxford commas, two spaces after periods.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/versohq/verso/internal/metrics"
	"github.com/versohq/verso/internal/registry"
)

// DefaultTTL bounds how long an entry is served without a refresh.
const DefaultTTL = 5 * time.Minute

// loadTimeout bounds one shared registry fetch, detached from any single
// caller's deadline.
const loadTimeout = 10 * time.Second

var (
	// ErrUnknownDomain means the Host matched no Connection.  Surfaced to
	// clients as a generic not-found with no further detail.
	ErrUnknownDomain = errors.New("unknown domain")

	// ErrConfigUnavailable means the registry could not be reached on a
	// cache miss.  Retriable; never answered with another tenant's data.
	ErrConfigUnavailable = errors.New("configuration unavailable")
)

// Source is the slice of the registry the resolver needs.
// *registry.Repo satisfies it.
type Source interface {
	ByDomain(ctx context.Context, domain string) (*registry.Connection, error)
	All(ctx context.Context) ([]registry.Connection, error)
}

type entry struct {
	conn      *registry.Connection
	fetchedAt time.Time
}

// Resolver maps domains to Connection records, cache first.
type Resolver struct {
	src Source
	ttl time.Duration
	sfg singleflight.Group
	m   sync.Map // normalized domain → *entry
}

// New constructs a Resolver.  ttl <= 0 falls back to DefaultTTL.
func New(src Source, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{src: src, ttl: ttl}
}

// Resolve returns the Connection owning domain.  Algorithm: normalize,
// cache hit → return, miss → registry via singleflight → populate →
// return.  See the package comment for the staleness contract.
func (r *Resolver) Resolve(ctx context.Context, domain string) (*registry.Connection, error) {
	d := Normalize(domain)
	if d == "" {
		return nil, ErrUnknownDomain
	}

	if v, ok := r.m.Load(d); ok {
		ent := v.(*entry)
		if time.Since(ent.fetchedAt) < r.ttl {
			metrics.ResolveHitsTotal.Inc()
			return ent.conn, nil
		}

		// Expired: refresh, but keep serving the same domain's stale
		// record when the registry is down (liveness over freshness).
		conn, err := r.load(ctx, d)
		switch {
		case err == nil:
			return conn, nil
		case errors.Is(err, ErrConfigUnavailable):
			zap.L().Warn("registry unreachable, serving stale entry",
				zap.String("domain", d),
				zap.Duration("age", time.Since(ent.fetchedAt)))
			return ent.conn, nil
		default:
			// Unknown domain after expiry: the tenant was removed or the
			// domain moved.  Drop the entry rather than risk a wrong hit.
			r.evict(d)
			return nil, err
		}
	}

	metrics.ResolveMissesTotal.Inc()
	return r.load(ctx, d)
}

// PreloadAll eagerly populates the cache from the registry so the first
// request per tenant pays no cold lookup.  Best effort at startup.
func (r *Resolver) PreloadAll(ctx context.Context) error {
	conns, err := r.src.All(ctx)
	if err != nil {
		return fmt.Errorf("resolver preload: %w", err)
	}
	for i := range conns {
		r.storeAll(&conns[i])
	}
	zap.S().Infow("resolver preloaded", "connections", len(conns))
	return nil
}

// Invalidate drops one domain from the cache.  Calling it for a domain
// that is not cached is a no-op.
func (r *Resolver) Invalidate(domain string) {
	r.evict(Normalize(domain))
}

// InvalidateAll empties the cache.
func (r *Resolver) InvalidateAll() {
	r.m.Range(func(key, _ any) bool {
		r.evict(key.(string))
		return true
	})
}

//
// internals
//

// load fetches one domain through the singleflight group and populates
// the cache, honoring the caller's cancellation.
func (r *Resolver) load(ctx context.Context, d string) (*registry.Connection, error) {
	ch := r.sfg.DoChan(d, func() (any, error) {
		// The fetch is shared by every waiter on this domain, so it must
		// not inherit the first caller's cancellation; each waiter
		// watches its own ctx in the select below.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		conn, err := r.src.ByDomain(fctx, d)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return nil, ErrUnknownDomain
			}
			metrics.ResolveErrorsTotal.Inc()
			return nil, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
		}
		r.storeAll(conn)
		return conn, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*registry.Connection), nil
	}
}

// storeAll caches one record under every domain it owns so sibling
// domains of a loaded tenant are warm too.
func (r *Resolver) storeAll(conn *registry.Connection) {
	ent := &entry{conn: conn, fetchedAt: time.Now()}
	for _, d := range conn.DomainNames {
		if prev, _ := r.m.Swap(Normalize(d), ent); prev == nil {
			metrics.CachedDomains.Inc()
		}
	}
}

func (r *Resolver) evict(d string) {
	if _, present := r.m.LoadAndDelete(d); present {
		metrics.CachedDomains.Dec()
		metrics.InvalidationsTotal.Inc()
	}
}

// Normalize lowercases a Host header value and strips any port suffix.
func Normalize(host string) string {
	host = strings.TrimSpace(host)
	if strings.ContainsRune(host, ':') {
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
