// internal/config/model.go
//
// Typed configuration model for Verso.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                         – dotenv values,
//   • `conf/global.yaml`                      – primary static file,
//   • `VERSO_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the secrets client at the point of use, so the model never
// stores raw credentials—only indirection strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`—Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Database section
//

// Database points at the central metadata store that holds the connection
// registry.  The DSN may use `vault:` indirection for its password.
type Database struct {
	GlobalDSN string `koanf:"global_dsn" validate:"required"`
}

//
// Resolver section
//

// Resolver tunes the domain → connection cache.
type Resolver struct {
	TTL     time.Duration `koanf:"ttl"`
	Preload bool          `koanf:"preload"`
}

//
// Sampler section
//

// Sampler controls the scheduled per-tenant usage collection job.  The
// schedule uses robfig/cron syntax, including `@every` descriptors.
type Sampler struct {
	Enabled  bool   `koanf:"enabled"`
	Schedule string `koanf:"schedule"`
}

//
// Admin section
//

// Admin guards the administrative API.  An empty token disables the
// surface entirely.
type Admin struct {
	Token string `koanf:"token"`
}

//
// Geo section
//

// Geo points at an optional GeoLite2-City database for access-log
// enrichment.  An empty path skips geolocation.
type Geo struct {
	DBPath string `koanf:"db_path"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime—never set in YAML or env.  The loader
// discovers `Root` (repo root or VERSO_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Resolver Resolver `koanf:"resolver"`
	Sampler  Sampler  `koanf:"sampler"`
	Admin    Admin    `koanf:"admin"`
	Geo      Geo      `koanf:"geo"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}
