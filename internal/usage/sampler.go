// internal/usage/sampler.go
//
// Scheduled per-tenant resource-usage sampling.
//
// Context
// -------
// A cron job walks every Connection and appends one usage sample
// (storage bytes, database request units) to the metadata store.  This is
// background work that was not reached through the routing middleware,
// so there is no ambient tenant; each connection's collection runs inside
// tenantctx.RunWith, the sanctioned scoping for off-request work.
//
// Sampling is best effort: a failed collection or write is logged and
// the walk continues.  Nothing in the routing path reads these rows.
//
// Notes
// -----
//   - The schedule string uses robfig/cron syntax, including `@every`.
//   - Oxford commas, two spaces after periods.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/versohq/verso/internal/registry"
	"github.com/versohq/verso/internal/tenantctx"
)

// runTimeout bounds one full sampling pass.
const runTimeout = 5 * time.Minute

// Stats is one observation for one tenant.
type Stats struct {
	StorageBytes   int64
	DBRequestUnits float64
}

// CollectFn gathers Stats for one Connection.  It runs inside the
// tenant's scope; implementations may call tenantctx.MustCurrent.
type CollectFn func(ctx context.Context, conn *registry.Connection) (Stats, error)

// Source is the slice of the registry the sampler needs.
// *registry.Repo satisfies it.
type Source interface {
	All(ctx context.Context) ([]registry.Connection, error)
	WriteSample(ctx context.Context, s registry.Sample) error
}

// Sampler owns the cron schedule and the collection walk.
type Sampler struct {
	src     Source
	collect CollectFn
	cron    *cron.Cron
}

// New constructs a Sampler.  Call Start to schedule it.
func New(src Source, collect CollectFn) *Sampler {
	return &Sampler{src: src, collect: collect, cron: cron.New()}
}

// Start registers the schedule and launches the cron runner.
func (s *Sampler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			zap.S().Errorw("usage sampling pass failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("usage schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	zap.S().Infow("usage sampler scheduled", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *Sampler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs one sampling pass over every Connection.  Exported so
// an administrative trigger or test can run it directly.
func (s *Sampler) RunOnce(ctx context.Context) error {
	conns, err := s.src.All(ctx)
	if err != nil {
		return fmt.Errorf("usage list connections: %w", err)
	}

	for i := range conns {
		conn := &conns[i]
		err := tenantctx.RunWith(ctx, conn.ID, func(ctx context.Context) error {
			stats, err := s.collect(ctx, conn)
			if err != nil {
				return fmt.Errorf("collect: %w", err)
			}
			return s.src.WriteSample(ctx, registry.Sample{
				ConnectionID:   conn.ID,
				TakenAt:        time.Now(),
				StorageBytes:   stats.StorageBytes,
				DBRequestUnits: stats.DBRequestUnits,
			})
		})
		if err != nil {
			zap.S().Warnw("usage sample skipped",
				"connection", conn.ID, "err", err)
		}
	}
	return nil
}
