// internal/registry/model.go
//
// Connection record model.
//
// Context
// -------
// One Connection row describes one tenant: the domain names that route to
// it, the opaque connection strings for its database and object storage,
// and descriptive fields carried through for reporting.  The record is
// pure data; interpretation of the connection strings happens in
// internal/provider.
//
// Notes
// -----
//   - `DomainNames` lives in its own table (`connection_domain`) with a
//     unique index on the domain column, which is what enforces the
//     "no two tenants may claim the same domain" invariant.
//   - `AllowSetup` is true only before the tenant completes first-run
//     configuration; the core carries it through unchanged.
//   - Oxford commas, two spaces after periods.
package registry

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Connection mirrors one row in the central `connection` table plus its
// associated domain rows.
type Connection struct {
	ID            uuid.UUID `db:"id"             json:"id"`
	CustomerName  string    `db:"customer_name"  json:"customer_name"`
	ResourceGroup string    `db:"resource_group" json:"resource_group"`
	PublisherMode string    `db:"publisher_mode" json:"publisher_mode"`
	AssetBaseURL  string    `db:"asset_base_url" json:"asset_base_url"`
	DBConn        string    `db:"db_conn"        json:"db_conn"`
	StorageConn   string    `db:"storage_conn"   json:"storage_conn"`
	AllowSetup    bool      `db:"allow_setup"    json:"allow_setup"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updated_at"`

	// Ordered list from `connection_domain`; always stored lowercase.
	DomainNames []string `db:"-" json:"domain_names"`
}

// HasDomain reports whether d (any case, no port) routes to this record.
func (c *Connection) HasDomain(d string) bool {
	d = strings.ToLower(d)
	for _, own := range c.DomainNames {
		if own == d {
			return true
		}
	}
	return false
}
