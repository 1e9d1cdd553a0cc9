// internal/resolver/resolver_test.go
//
// Exercises the cache contract with a fake registry source: hit-no-I/O,
// normalization, idempotent invalidation, stale-serving, and the
// unknown-domain and unavailable error paths.
//
// Run: go test ./internal/resolver -race -v

package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/versohq/verso/internal/registry"
)

// fakeSource serves a fixed set of records and counts lookups.  A non-nil
// gate makes ByDomain block until the gate closes, for in-flight tests.
type fakeSource struct {
	conns   []registry.Connection
	calls   atomic.Int64
	failing atomic.Bool
	gate    chan struct{}
}

func (f *fakeSource) ByDomain(ctx context.Context, domain string) (*registry.Connection, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failing.Load() {
		return nil, errors.New("dial tcp: connection refused")
	}
	for i := range f.conns {
		if f.conns[i].HasDomain(domain) {
			c := f.conns[i]
			return &c, nil
		}
	}
	return nil, registry.ErrNotFound
}

func (f *fakeSource) All(ctx context.Context) ([]registry.Connection, error) {
	f.calls.Add(1)
	if f.failing.Load() {
		return nil, errors.New("dial tcp: connection refused")
	}
	return f.conns, nil
}

var (
	idAcme = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	idBolt = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func newFixture() *fakeSource {
	return &fakeSource{conns: []registry.Connection{
		{ID: idAcme, DomainNames: []string{"acme.example", "www.acme.example"}},
		{ID: idBolt, DomainNames: []string{"bolt.example"}},
	}}
}

func TestResolve_DisjointDomains(t *testing.T) {
	src := newFixture()
	r := New(src, time.Minute)
	ctx := context.Background()

	for domain, want := range map[string]uuid.UUID{
		"acme.example":     idAcme,
		"www.acme.example": idAcme,
		"bolt.example":     idBolt,
	} {
		got, err := r.Resolve(ctx, domain)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", domain, err)
		}
		if got.ID != want {
			t.Fatalf("Resolve(%q) = %s, want %s", domain, got.ID, want)
		}
	}

	if _, err := r.Resolve(ctx, "evil.example"); !errors.Is(err, ErrUnknownDomain) {
		t.Fatalf("unknown domain err = %v, want ErrUnknownDomain", err)
	}
}

func TestResolve_SecondCallHitsCache(t *testing.T) {
	src := newFixture()
	r := New(src, time.Minute)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "acme.example")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	before := src.calls.Load()

	second, err := r.Resolve(ctx, "acme.example")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if src.calls.Load() != before {
		t.Fatalf("second resolve performed registry I/O")
	}
	if first.ID != second.ID {
		t.Fatalf("results differ between calls: %s vs %s", first.ID, second.ID)
	}
}

func TestResolve_NormalizesCaseAndPort(t *testing.T) {
	src := newFixture()
	r := New(src, time.Minute)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "acme.example"); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	before := src.calls.Load()

	for _, variant := range []string{"ACME.Example", "acme.example:443", "Acme.Example:8080"} {
		got, err := r.Resolve(ctx, variant)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", variant, err)
		}
		if got.ID != idAcme {
			t.Fatalf("Resolve(%q) = %s, want acme", variant, got.ID)
		}
	}
	if src.calls.Load() != before {
		t.Fatalf("case or port variants bypassed the cache")
	}
}

func TestInvalidate_IdempotentAndForcesReload(t *testing.T) {
	src := newFixture()
	r := New(src, time.Minute)
	ctx := context.Background()

	// Invalidating a domain that was never cached is a no-op.
	r.Invalidate("never-seen.example")

	if _, err := r.Resolve(ctx, "bolt.example"); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	before := src.calls.Load()

	r.Invalidate("bolt.example")
	r.Invalidate("bolt.example") // second call must also be a no-op

	if _, err := r.Resolve(ctx, "bolt.example"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if src.calls.Load() != before+1 {
		t.Fatalf("expected exactly one reload after invalidation, got %d extra calls",
			src.calls.Load()-before)
	}
}

func TestResolve_UnavailableOnColdMiss(t *testing.T) {
	src := newFixture()
	src.failing.Store(true)
	r := New(src, time.Minute)

	_, err := r.Resolve(context.Background(), "acme.example")
	if !errors.Is(err, ErrConfigUnavailable) {
		t.Fatalf("err = %v, want ErrConfigUnavailable", err)
	}
}

func TestResolve_ServesStaleWhenRegistryDown(t *testing.T) {
	src := newFixture()
	r := New(src, time.Nanosecond) // every entry expires immediately
	ctx := context.Background()

	first, err := r.Resolve(ctx, "acme.example")
	if err != nil {
		t.Fatalf("warmup: %v", err)
	}
	time.Sleep(time.Millisecond)

	src.failing.Store(true)
	got, err := r.Resolve(ctx, "acme.example")
	if err != nil {
		t.Fatalf("stale resolve: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("stale entry is for a different tenant: %s vs %s", got.ID, first.ID)
	}
}

func TestResolve_ExpiredRemovedDomainIsDropped(t *testing.T) {
	src := newFixture()
	r := New(src, time.Nanosecond)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "bolt.example"); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	time.Sleep(time.Millisecond)

	// The tenant gives up the domain; the registry now reports no owner.
	src.conns = src.conns[:1]

	if _, err := r.Resolve(ctx, "bolt.example"); !errors.Is(err, ErrUnknownDomain) {
		t.Fatalf("err = %v, want ErrUnknownDomain after domain removal", err)
	}
}

func TestPreloadAll_WarmsEveryDomain(t *testing.T) {
	src := newFixture()
	r := New(src, time.Minute)
	ctx := context.Background()

	if err := r.PreloadAll(ctx); err != nil {
		t.Fatalf("PreloadAll: %v", err)
	}
	before := src.calls.Load()

	for _, d := range []string{"acme.example", "www.acme.example", "bolt.example"} {
		if _, err := r.Resolve(ctx, d); err != nil {
			t.Fatalf("Resolve(%q) after preload: %v", d, err)
		}
	}
	if src.calls.Load() != before {
		t.Fatalf("preloaded domains still hit the registry")
	}
}

// waitUntil polls cond for up to two seconds.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestResolve_HonorsCallerCancellation(t *testing.T) {
	src := newFixture()
	src.gate = make(chan struct{})
	defer close(src.gate)
	r := New(src, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, "acme.example")
		errCh <- err
	}()

	// Cancel once the cold-miss fetch is in flight.
	waitUntil(t, func() bool { return src.calls.Load() == 1 })
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Resolve did not return after caller cancellation")
	}
}

func TestResolve_WaiterSurvivesFirstCallerCancel(t *testing.T) {
	src := newFixture()
	src.gate = make(chan struct{})
	r := New(src, time.Minute)

	ctx1, cancel1 := context.WithCancel(context.Background())
	err1Ch := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx1, "acme.example")
		err1Ch <- err
	}()
	waitUntil(t, func() bool { return src.calls.Load() == 1 })

	// A second caller joins the same in-flight fetch.
	type res struct {
		conn *registry.Connection
		err  error
	}
	res2Ch := make(chan res, 1)
	go func() {
		conn, err := r.Resolve(context.Background(), "acme.example")
		res2Ch <- res{conn, err}
	}()
	time.Sleep(10 * time.Millisecond)

	// The first caller gives up; the shared fetch must keep going.
	cancel1()
	if err := <-err1Ch; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller err = %v, want context.Canceled", err)
	}

	close(src.gate)
	second := <-res2Ch
	if second.err != nil {
		t.Fatalf("waiter err = %v, want success despite first caller's cancel", second.err)
	}
	if second.conn.ID != idAcme {
		t.Fatalf("waiter got %s, want acme", second.conn.ID)
	}
	if src.calls.Load() != 1 {
		t.Fatalf("registry calls = %d, want the single shared fetch", src.calls.Load())
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Example.COM":      "example.com",
		"example.com:8080": "example.com",
		"example.com.":     "example.com",
		" example.com ":    "example.com",
		"[::1]:8080":       "::1",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
