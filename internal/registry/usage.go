// internal/registry/usage.go
//
// Append-only usage sample writes.
//
// The `usage_sample` table is write-only from this process; external
// reporting reads it.  Nothing in the routing path depends on it, so a
// failed write is logged by the caller and never propagated to a request.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/versohq/verso/internal/metrics"
)

// Sample is one periodic resource-usage observation for one Connection.
type Sample struct {
	ConnectionID   uuid.UUID `db:"connection_id"`
	TakenAt        time.Time `db:"taken_at"`
	StorageBytes   int64     `db:"storage_bytes"`
	DBRequestUnits float64   `db:"db_request_units"`
}

// WriteSample appends one row to `usage_sample`.
func (r *Repo) WriteSample(ctx context.Context, s Sample) error {
	const q = `
	    INSERT INTO usage_sample (connection_id, taken_at, storage_bytes, db_request_units)
	    VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q,
		s.ConnectionID, s.TakenAt.UTC(), s.StorageBytes, s.DBRequestUnits); err != nil {
		return fmt.Errorf("usage sample write: %w", err)
	}
	metrics.UsageSamplesTotal.Inc()
	return nil
}
