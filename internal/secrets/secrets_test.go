// internal/secrets/secrets_test.go
//
// Run: go test ./internal/secrets -v

package secrets

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestResolve_PassthroughWithoutPrefix(t *testing.T) {
	c := &Client{cache: make(map[string]cached)}

	plain := "Server=db;Database=acme;Password=notasecretref"
	got, err := c.Resolve(context.Background(), plain)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != plain {
		t.Fatalf("plain value was altered: %q", got)
	}
}

func TestResolve_MalformedReference(t *testing.T) {
	c := &Client{cache: make(map[string]cached)}

	for _, ref := range []string{"vault:", "vault:secret/acme", "vault:#password"} {
		if _, err := c.Resolve(context.Background(), ref); err == nil {
			t.Errorf("Resolve(%q) should fail", ref)
		} else if !strings.Contains(err.Error(), "malformed") {
			t.Errorf("Resolve(%q) err = %v, want malformed-reference error", ref, err)
		}
	}
}

func TestResolve_CachedValueSkipsVault(t *testing.T) {
	// api is nil; a Vault round-trip would panic, so success proves the
	// cache short-circuit.
	c := &Client{cache: map[string]cached{
		"secret/acme#password": {val: "hunter2", exp: time.Now().Add(time.Minute)},
	}}

	got, err := c.Resolve(context.Background(), "vault:secret/acme#password")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != "hunter2" {
		t.Fatalf("got %q, want cached value", got)
	}
}

func TestSplitMount(t *testing.T) {
	mount, rel := splitMount("secret/tenants/acme")
	if mount != "secret" || rel != "tenants/acme" {
		t.Fatalf("splitMount = %q, %q", mount, rel)
	}
}
