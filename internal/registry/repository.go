// internal/registry/repository.go
//
// Repository over the central metadata store.
//
// Context
// -------
// All processes share one tenant-agnostic MySQL database holding the
// `connection` and `connection_domain` tables.  The repository is the only
// code that touches them.  Writes that change the domain list are wrapped
// in a transaction, so a half-applied domain rename can never be observed
// by the resolver.
//
// Connection strings may use `vault:` indirection; when a secret resolver
// is attached, read paths return the resolved plain values and the raw
// indirection string never leaves this package.
//
// Notes
// -----
//   - Concurrent writers to different Connection rows do not block each
//     other; MySQL row locks are sufficient, no table-level locking here.
//   - Oxford commas, two spaces after periods.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when no Connection matches the lookup.
var ErrNotFound = errors.New("connection not found")

// SecretResolver resolves `vault:` indirection in stored values.  A nil
// resolver leaves values untouched.
type SecretResolver interface {
	Resolve(ctx context.Context, value string) (string, error)
}

// Repo wraps the central metadata pool.
type Repo struct {
	db      *sqlx.DB
	secrets SecretResolver
}

// New returns a Repo.  secrets may be nil.
func New(db *sqlx.DB, secrets SecretResolver) *Repo {
	return &Repo{db: db, secrets: secrets}
}

const connCols = `c.id, c.customer_name, c.resource_group, c.publisher_mode,
	       c.asset_base_url, c.db_conn, c.storage_conn, c.allow_setup,
	       c.created_at, c.updated_at`

// ByDomain fetches the Connection owning one domain name.  The caller is
// expected to pass a normalized (lowercase, port-free) domain; the query
// is case-insensitive anyway because the column collation is.
func (r *Repo) ByDomain(ctx context.Context, domain string) (*Connection, error) {
	const q = `
	    SELECT ` + connCols + `
	    FROM   connection c
	    JOIN   connection_domain d ON d.connection_id = c.id
	    WHERE  d.domain = ?
	    LIMIT  1`

	var rec Connection
	if err := r.db.GetContext(ctx, &rec, q, strings.ToLower(domain)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("registry by domain: %w", err)
	}
	return r.finish(ctx, &rec)
}

// ByID fetches one Connection by its identifier.
func (r *Repo) ByID(ctx context.Context, id uuid.UUID) (*Connection, error) {
	const q = `
	    SELECT ` + connCols + `
	    FROM   connection c
	    WHERE  c.id = ?
	    LIMIT  1`

	var rec Connection
	if err := r.db.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("registry by id: %w", err)
	}
	return r.finish(ctx, &rec)
}

// All returns every Connection with its domain list.  Used by PreloadAll
// and the usage sampler, not by the per-request path.
func (r *Repo) All(ctx context.Context) ([]Connection, error) {
	const q = `
	    SELECT ` + connCols + `
	    FROM   connection c
	    ORDER  BY c.created_at`

	var recs []Connection
	if err := r.db.SelectContext(ctx, &recs, q); err != nil {
		return nil, fmt.Errorf("registry list: %w", err)
	}
	for i := range recs {
		if _, err := r.finish(ctx, &recs[i]); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// Upsert inserts or updates one Connection and replaces its domain list.
// The domain replacement is all-or-nothing: the old list is deleted and
// the new one inserted inside one transaction.
func (r *Repo) Upsert(ctx context.Context, c *Connection) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("registry upsert begin: %w", err)
	}
	defer tx.Rollback()

	const up = `
	    INSERT INTO connection
	           (id, customer_name, resource_group, publisher_mode,
	            asset_base_url, db_conn, storage_conn, allow_setup,
	            created_at, updated_at)
	    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	    ON DUPLICATE KEY UPDATE
	           customer_name = VALUES(customer_name),
	           resource_group = VALUES(resource_group),
	           publisher_mode = VALUES(publisher_mode),
	           asset_base_url = VALUES(asset_base_url),
	           db_conn = VALUES(db_conn),
	           storage_conn = VALUES(storage_conn),
	           allow_setup = VALUES(allow_setup),
	           updated_at = VALUES(updated_at)`

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, up,
		c.ID, c.CustomerName, c.ResourceGroup, c.PublisherMode,
		c.AssetBaseURL, c.DBConn, c.StorageConn, c.AllowSetup,
		c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("registry upsert row: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM connection_domain WHERE connection_id = ?`, c.ID); err != nil {
		return fmt.Errorf("registry upsert domains clear: %w", err)
	}
	for i, d := range c.DomainNames {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO connection_domain (connection_id, domain, position) VALUES (?, ?, ?)`,
			c.ID, strings.ToLower(d), i); err != nil {
			return fmt.Errorf("registry upsert domain %q: %w", d, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("registry upsert commit: %w", err)
	}
	return nil
}

// Delete removes one Connection and its domains.  Callers must have cut
// traffic over first; the repository does not check for live use.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("registry delete begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM connection_domain WHERE connection_id = ?`, id); err != nil {
		return fmt.Errorf("registry delete domains: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM connection WHERE id = ?`, id); err != nil {
		return fmt.Errorf("registry delete row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("registry delete commit: %w", err)
	}
	return nil
}

//
// helpers
//

// finish loads the domain list and resolves secret indirection.
func (r *Repo) finish(ctx context.Context, c *Connection) (*Connection, error) {
	const q = `
	    SELECT domain
	    FROM   connection_domain
	    WHERE  connection_id = ?
	    ORDER  BY position`
	if err := r.db.SelectContext(ctx, &c.DomainNames, q, c.ID); err != nil {
		return nil, fmt.Errorf("registry domains for %s: %w", c.ID, err)
	}

	if r.secrets != nil {
		var err error
		if c.DBConn, err = r.secrets.Resolve(ctx, c.DBConn); err != nil {
			return nil, fmt.Errorf("registry db_conn secret: %w", err)
		}
		if c.StorageConn, err = r.secrets.Resolve(ctx, c.StorageConn); err != nil {
			return nil, fmt.Errorf("registry storage_conn secret: %w", err)
		}
	}
	return c, nil
}
