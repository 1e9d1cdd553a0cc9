//
//  internal/admin/api.go
//
//  Operator-facing HTTP API for the connection registry.  Mounted on the
//  shared router under /admin and guarded by a static bearer token, it
//  lets provisioning tooling upsert or delete connections and flush the
//  resolver cache without a process restart.
//
//  Context
//  • Upserts invalidate both the connection's previous domains (read
//    from the registry before the write) and its new ones, so a domain
//    that moves between connections never serves a stale mapping.
//
//  Notes
//  • The token is compared with crypto/subtle to avoid timing leaks.
//  • Oxford commas, two spaces after periods.
//

package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/versohq/verso/internal/registry"
)

// Store is the slice of the registry the API needs.
type Store interface {
	ByID(ctx context.Context, id uuid.UUID) (*registry.Connection, error)
	Upsert(ctx context.Context, c *registry.Connection) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Invalidator is the slice of the resolver the API needs.
type Invalidator interface {
	Invalidate(domain string)
	InvalidateAll()
}

// API wires the admin endpoints to a registry store and a resolver.
type API struct {
	store Store
	cache Invalidator
	token string
}

// New constructs the API.  An empty token disables every endpoint with
// 403, which keeps a misconfigured deployment closed rather than open.
func New(store Store, cache Invalidator, token string) *API {
	return &API{store: store, cache: cache, token: token}
}

// Router returns a chi router ready to mount under /admin.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(a.auth)
	r.Put("/connections", a.upsertConnection)
	r.Delete("/connections/{id}", a.deleteConnection)
	r.Post("/cache/invalidate", a.invalidateCache)
	return r
}

// auth enforces "Authorization: Bearer <token>" on every admin request.
func (a *API) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token == "" {
			http.Error(w, "admin API disabled", http.StatusForbidden)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// upsertConnection creates or replaces a connection record.  The body is
// the registry.Connection JSON shape; a zero ID means "mint one".
func (a *API) upsertConnection(w http.ResponseWriter, r *http.Request) {
	var c registry.Connection
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(c.DomainNames) == 0 {
		http.Error(w, "at least one domain is required", http.StatusBadRequest)
		return
	}
	created := false
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
		created = true
	}

	// Collect the domains to flush before the write changes them.
	stale := make([]string, 0, len(c.DomainNames))
	if !created {
		if prev, err := a.store.ByID(r.Context(), c.ID); err == nil {
			stale = append(stale, prev.DomainNames...)
		} else if !errors.Is(err, registry.ErrNotFound) {
			http.Error(w, "registry lookup failed", http.StatusInternalServerError)
			return
		}
	}
	stale = append(stale, c.DomainNames...)

	if err := a.store.Upsert(r.Context(), &c); err != nil {
		zap.S().Errorw("admin: upsert failed", "id", c.ID, "err", err)
		http.Error(w, "upsert failed", http.StatusInternalServerError)
		return
	}
	for _, d := range stale {
		a.cache.Invalidate(d)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": c.ID.String()})
}

// deleteConnection removes a connection and flushes its domains.
func (a *API) deleteConnection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	conn, err := a.store.ByID(r.Context(), id)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		http.Error(w, "registry lookup failed", http.StatusInternalServerError)
		return
	}

	if err := a.store.Delete(r.Context(), id); err != nil {
		zap.S().Errorw("admin: delete failed", "id", id, "err", err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	for _, d := range conn.DomainNames {
		a.cache.Invalidate(d)
	}
	w.WriteHeader(http.StatusNoContent)
}

// invalidateCache flushes one domain (?domain=…) or the whole cache.
func (a *API) invalidateCache(w http.ResponseWriter, r *http.Request) {
	if d := r.URL.Query().Get("domain"); d != "" {
		a.cache.Invalidate(d)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	a.cache.InvalidateAll()
	w.WriteHeader(http.StatusNoContent)
}
