// cmd/web/main.go
//
// Verso – HTTP entry point.
//
// Start-up sequence
// -----------------
//
//  1. Load layered configuration (conf/global.yaml + VERSO_* env vars).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Connect the optional Vault client for secret-reference resolution.
//
//  4. Open the global registry DB and log the connection count.
//
//  5. Build the domain resolver (lazy per-domain cache, optional preload).
//
//  6. Start the usage sampler when enabled.
//
//  7. Assemble the router: /metrics, /admin, and the tenant-scoped tree,
//     wrapped in security headers and optional HTTPS enforcement.
//
//  8. Serve with hardened timeouts and drain gracefully on SIGINT/SIGTERM.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/versohq/verso/internal/admin"
	"github.com/versohq/verso/internal/config"
	"github.com/versohq/verso/internal/database"
	"github.com/versohq/verso/internal/logger"
	"github.com/versohq/verso/internal/middleware"
	"github.com/versohq/verso/internal/registry"
	"github.com/versohq/verso/internal/requestinfo"
	"github.com/versohq/verso/internal/resolver"
	"github.com/versohq/verso/internal/secrets"
	"github.com/versohq/verso/internal/server"
	"github.com/versohq/verso/internal/tenanthost"
	"github.com/versohq/verso/internal/usage"
)

const shutdownGrace = 15 * time.Second

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logOut, err := logger.New(cfg.Paths.Root, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Optional Vault client ───────────────────────────────────────
	//
	var secretSrc registry.SecretResolver
	if os.Getenv("VAULT_ADDR") != "" {
		vc, err := secrets.New(ctx)
		if err != nil {
			logOut.Fatalf("connect vault: %v", err)
		}
		secretSrc = vc
		logOut.Info("vault secret resolution enabled")
	}

	//
	// ── 2.  Global registry DB connect ──────────────────────────────────
	//
	logOut.Info("connecting to registry DB …")
	globalDB, err := database.Open(ctx, cfg.Database.GlobalDSN)
	if err != nil {
		logOut.Fatalf("connect registry DB: %v", err)
	}
	defer globalDB.Close()
	logOut.Info("registry DB online")

	// Log the connection count as an early sanity check.
	var total int
	_ = globalDB.GetContext(ctx, &total, `SELECT COUNT(*) FROM connection`)
	logOut.Infof("%d connection(s) registered", total)

	repo := registry.New(globalDB, secretSrc)

	//
	// ── 3.  Domain resolver (lazy per-domain cache) ─────────────────────
	//
	res := resolver.New(repo, cfg.Resolver.TTL)
	if cfg.Resolver.Preload {
		if err := res.PreloadAll(ctx); err != nil {
			logOut.Warnw("resolver preload failed, continuing lazy", "err", err)
		}
	}

	//
	// ── 4.  GeoIP and usage sampler ─────────────────────────────────────
	//
	if err := requestinfo.InitGeo(cfg.Geo.DBPath); err != nil {
		logOut.Warnw("geoip disabled", "err", err)
	}

	if cfg.Sampler.Enabled {
		smp := usage.New(repo, collectUsage)
		if err := smp.Start(cfg.Sampler.Schedule); err != nil {
			logOut.Fatalf("start usage sampler: %v", err)
		}
		defer smp.Stop()
		logOut.Infow("usage sampler scheduled", "schedule", cfg.Sampler.Schedule)
	}

	//
	// ── 5.  Router assembly ─────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/admin", admin.New(repo, res, cfg.Admin.Token).Router())

	// Everything else is tenant territory: host → connection → handler.
	tenantTree := chi.NewRouter()
	tenantTree.Use(tenanthost.Middleware(res))
	tenantTree.Use(requestinfo.Enrich)
	tenantTree.Use(tenanthost.Require)
	tenantTree.Get("/.well-known/verso", tenantInfo)
	tenantTree.NotFound(tenantInfo)
	r.Mount("/", tenantTree)

	var handler http.Handler = middleware.Security(r)
	if cfg.HTTP.ForceHTTPS {
		handler = middleware.ForceHTTPS(res, handler)
	}

	//
	// ── 6.  Serve and drain ─────────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, handler)

	errCh := make(chan error, 1)
	go func() {
		logOut.Infof("listening on %s", cfg.HTTP.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logOut.Fatalf("http server: %v", err)
		}
	case <-ctx.Done():
		logOut.Info("shutdown signal received, draining …")
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logOut.Warnw("shutdown incomplete", "err", err)
		}
	}
	logOut.Info("bye")
}

// tenantInfo answers any tenant-scoped request with the resolved record.
// It is the smallest useful proof that routing and resolution worked;
// content modules mount their own routes above it.
func tenantInfo(w http.ResponseWriter, r *http.Request) {
	conn, _ := tenanthost.Conn(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":             conn.ID,
		"customer_name":  conn.CustomerName,
		"publisher_mode": conn.PublisherMode,
		"asset_base_url": conn.AssetBaseURL,
	})
}

// collectUsage gathers one usage observation for one tenant.  Storage is
// the tenant database footprint from information_schema; request units
// are MySQL's monotonic Questions counter, which consumers diff between
// successive samples.
func collectUsage(ctx context.Context, conn *registry.Connection) (usage.Stats, error) {
	db, err := database.OpenWithOptions(ctx, conn.DBConn, database.Options{
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	})
	if err != nil {
		return usage.Stats{}, err
	}
	defer db.Close()

	var bytes int64
	const sizeQ = `
	    SELECT COALESCE(SUM(data_length + index_length), 0)
	    FROM   information_schema.tables
	    WHERE  table_schema = DATABASE()`
	if err := db.GetContext(ctx, &bytes, sizeQ); err != nil {
		return usage.Stats{}, err
	}

	var name string
	var questions float64
	row := db.QueryRowContext(ctx, `SHOW GLOBAL STATUS LIKE 'Questions'`)
	if err := row.Scan(&name, &questions); err != nil {
		return usage.Stats{}, err
	}

	return usage.Stats{StorageBytes: bytes, DBRequestUnits: questions}, nil
}
