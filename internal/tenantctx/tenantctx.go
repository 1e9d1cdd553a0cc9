// internal/tenantctx/tenantctx.go
//
// Ambient per-operation tenant identity.
//
// Context
// -------
// The current tenant flows through call chains on context.Context, the
// only primitive in Go that is inherited by continuations of the same
// logical operation without being shared across goroutines scheduled for
// other operations.  There is no package-level mutable state here at all;
// a leak between two concurrent requests is impossible by construction.
//
// RunWith is the only sanctioned way to establish identity outside the
// routing middleware (background jobs, queue consumers, timers).  Because
// it derives a child context and never mutates the parent, restoration on
// exit is lexical: it holds on error, panic, and cancellation without any
// cleanup step.
//
// Notes
// -----
//   - MustCurrent panics.  Reading the tenant before the middleware or
//     RunWith installed one is a programming defect, not a runtime error,
//     and must not be satisfied with a default tenant.
//   - Oxford commas, two spaces after periods.
package tenantctx

import (
	"context"

	"github.com/google/uuid"
)

// ctxKey is unexported so no other package can install a value directly.
type ctxKey struct{}

// Current returns the tenant identifier for this operation, if any.
func Current(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxKey{}).(uuid.UUID)
	return id, ok
}

// Has reports whether a tenant identity is installed.
func Has(ctx context.Context) bool {
	_, ok := Current(ctx)
	return ok
}

// MustCurrent returns the tenant identifier or panics.  Use only in code
// paths that cannot legally run outside a tenant scope.
func MustCurrent(ctx context.Context) uuid.UUID {
	id, ok := Current(ctx)
	if !ok {
		panic("tenantctx: no tenant in context")
	}
	return id
}

// RunWith executes fn with the tenant identity set to id for exactly the
// duration of fn.  The parent context is untouched, so the prior value
// (possibly none) is what any code outside fn continues to observe.
func RunWith(ctx context.Context, id uuid.UUID, fn func(context.Context) error) error {
	return fn(context.WithValue(ctx, ctxKey{}, id))
}
