// internal/settings/settings.go
//
// Per-tenant key/value settings and per-field origin resolution.
//
// Context
// -------
// Each Connection can carry grouped settings rows (group "EMAIL",
// "STORAGE", …) in the central `connection_setting` table.  Individual
// fields also accept an environment override, and the precedence is
// fixed per field, not per provider:
//
//   environment variable  >  per-tenant settings row  >  empty
//
// Resolve makes that order one explicit, tested function instead of an
// inference scattered across call sites.  Provider selection runs *after*
// this per-field step and never cares where a value came from.
//
// Notes
// -----
//   - Env names follow VERSO_<GROUP>_<KEY>, e.g. VERSO_EMAIL_SMTP_HOST.
//   - A set-but-empty env var does not override; empty means absent.
//   - Oxford commas, two spaces after periods.
package settings

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Groups used by the provider selector.
const (
	GroupEmail   = "EMAIL"
	GroupStorage = "STORAGE"
)

// ByConnection returns a map[key]value for one connection and group.
// The query runs when a provider is first selected for a tenant, and the
// caller may cache the map alongside other per-tenant state.
func ByConnection(ctx context.Context, db *sqlx.DB, connID uuid.UUID, group string) (map[string]string, error) {
	const q = `
	    SELECT  ` + "`key`, value" + `
	    FROM    connection_setting
	    WHERE   connection_id = ?
	      AND   ` + "`group`" + ` = ?`
	rows := make([]struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}, 0, 8)

	if err := db.SelectContext(ctx, &rows, q, connID, group); err != nil {
		return nil, fmt.Errorf("settings for %s/%s: %w", connID, group, err)
	}

	vals := make(map[string]string, len(rows))
	for _, r := range rows {
		vals[r.Key] = r.Value
	}
	return vals, nil
}

// Resolve returns the effective value of one field: the environment
// variable when non-empty, otherwise the per-tenant row, otherwise "".
func Resolve(group, key string, dbValues map[string]string) string {
	if v := os.Getenv(EnvKey(group, key)); v != "" {
		return v
	}
	return dbValues[key]
}

// EnvKey builds the canonical environment variable name for one field.
func EnvKey(group, key string) string {
	return "VERSO_" + strings.ToUpper(group) + "_" + strings.ToUpper(key)
}
