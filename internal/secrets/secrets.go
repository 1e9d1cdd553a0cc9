// internal/secrets/secrets.go
//
// Vault-backed secret indirection for connection strings.
//
// Context
// -------
// The central metadata store never holds raw credentials.  Any stored
// value of the form `vault:<mount>/<path>#<key>` is swapped for the
// secret it names when a Connection record is read, so rotating a
// tenant's database password is a Vault write plus a cache invalidation,
// with no process restart.
//
// Public workflow
// ---------------
//  1. cli, err := secrets.New(ctx)            // during boot, optional.
//  2. plain, err := cli.Resolve(ctx, value)   // registry read path.
//
// Environment expectations
// ------------------------
// • VAULT_ADDR   – scheme and host of the Vault server.
// • VAULT_TOKEN  – initial token (falls back to ~/.vault-token).
//
// Notes
// -----
//   - Values without the `vault:` prefix pass through untouched, so the
//     client is safe to install unconditionally.
//   - Resolved secrets are cached for a short TTL; an invalidated
//     resolver entry therefore re-reads Vault at most once per TTL.
//   - Oxford commas, two spaces after periods.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
)

const (
	prefix   = "vault:"
	cacheTTL = 5 * time.Minute
)

// Client is safe for concurrent use.  Zero value is invalid; construct
// with New.
type Client struct {
	api *vault.Client

	cacheMu sync.RWMutex
	cache   map[string]cached // "<path>#<key>" → value + expiry
}

type cached struct {
	val string
	exp time.Time
}

// New constructs a Vault client from the environment and starts a
// background token-renewal loop bound to ctx.
func New(ctx context.Context) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	c := &Client{api: apiCli, cache: make(map[string]cached)}
	go c.renewLoop(ctx)
	return c, nil
}

// Resolve swaps a `vault:` indirection for the secret it names.  Plain
// values are returned unchanged.
func (c *Client) Resolve(ctx context.Context, value string) (string, error) {
	if !strings.HasPrefix(value, prefix) {
		return value, nil
	}

	ref := strings.TrimPrefix(value, prefix)
	secretPath, key, ok := strings.Cut(ref, "#")
	if !ok || secretPath == "" || key == "" {
		return "", fmt.Errorf("malformed secret reference %q (want vault:<path>#<key>)", value)
	}

	c.cacheMu.RLock()
	if cv, hit := c.cache[ref]; hit && time.Now().Before(cv.exp) {
		c.cacheMu.RUnlock()
		return cv.val, nil
	}
	c.cacheMu.RUnlock()

	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, found := sec.Data[key]
	if !found {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}
	sval, isStr := raw.(string)
	if !isStr {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}

	c.cacheMu.Lock()
	c.cache[ref] = cached{val: sval, exp: time.Now().Add(cacheTTL)}
	c.cacheMu.Unlock()
	return sval, nil
}

//
// background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sec, err := c.api.Auth().Token().RenewSelf(0)
		if err != nil || sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			backoff(ctx, time.Hour)
			continue
		}

		watcher, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{
			Secret: sec,
		})
		if err != nil {
			backoff(ctx, 30*time.Second)
			continue
		}

		go watcher.Start()
		select {
		case <-ctx.Done():
			watcher.Stop()
			return
		case <-watcher.DoneCh():
			watcher.Stop()
			backoff(ctx, 15*time.Second)
		}
	}
}

//
// helpers
//

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}

func backoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
