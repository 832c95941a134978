//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lendkit/backoffice/store"
)

// redisMode describes which Redis backend the compatibility suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the set of Redis backends to test.
// miniredis is always available.
// Real Redis standalone is used when REDIS_ADDR is set (e.g. "127.0.0.1:6379").
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				// Flush the test DB to avoid state leaking between runs.
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	// Cluster mode: when REDIS_CLUSTER_ADDRS is set (comma-separated).
	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: splitAddrs(addrs)})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis cluster: %v", err)
				}
				return rdb, func() { _ = rdb.Close() }
			},
		})
	}

	// Sentinel mode: when REDIS_SENTINEL_ADDRS and REDIS_SENTINEL_MASTER are set.
	if addrs := os.Getenv("REDIS_SENTINEL_ADDRS"); addrs != "" {
		master := os.Getenv("REDIS_SENTINEL_MASTER")
		if master == "" {
			master = "mymaster"
		}
		modes = append(modes, redisMode{
			name: "sentinel",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewFailoverClient(&redis.FailoverOptions{
					MasterName:    master,
					SentinelAddrs: splitAddrs(addrs),
				})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis sentinel: %v", err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	return modes
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// TestRedisCompat_PairRoundTrip validates pair persistence and rotation
// overwrite across backends. Only single-key commands are involved, so the
// behavior must match on standalone, cluster, and sentinel alike.
func TestRedisCompat_PairRoundTrip(t *testing.T) {
	issuer := newIntegrationIssuer(t, time.Hour)
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			tokens := store.NewRedis(rdb, "compat", time.Hour)
			ctx := context.Background()

			first := makePair(t, issuer, "Dana Okafor", "credit-officer", "refresh-1")
			if err := tokens.Save(ctx, first); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := tokens.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got != first {
				t.Fatal("loaded pair does not match the saved pair")
			}

			// A refresh rotation overwrites in place; the old pair must be gone.
			rotated := makePair(t, issuer, "Dana Okafor", "credit-officer", "refresh-2")
			if err := tokens.Save(ctx, rotated); err != nil {
				t.Fatalf("save rotated: %v", err)
			}
			got, err = tokens.Load(ctx)
			if err != nil {
				t.Fatalf("load rotated: %v", err)
			}
			if got.RefreshToken != "refresh-2" {
				t.Errorf("expected rotated refresh token, got %q", got.RefreshToken)
			}
		})
	}
}

// TestRedisCompat_ClearIdempotent validates sign-out idempotency across backends.
func TestRedisCompat_ClearIdempotent(t *testing.T) {
	issuer := newIntegrationIssuer(t, time.Hour)
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			tokens := store.NewRedis(rdb, "compat", time.Hour)
			ctx := context.Background()

			if err := tokens.Save(ctx, makePair(t, issuer, "Dana Okafor", "credit-officer", "refresh-x")); err != nil {
				t.Fatalf("save: %v", err)
			}

			if err := tokens.Clear(ctx); err != nil {
				t.Fatalf("first clear: %v", err)
			}
			if err := tokens.Clear(ctx); err != nil {
				t.Fatalf("second clear should be idempotent: %v", err)
			}
			if _, err := tokens.Load(ctx); !errors.Is(err, store.ErrNoPair) {
				t.Errorf("expected ErrNoPair after clear, got %v", err)
			}
		})
	}
}

// TestRedisCompat_SnapshotTakeOnce validates that a form snapshot restore is
// exactly-once across backends: GETDEL is atomic everywhere.
func TestRedisCompat_SnapshotTakeOnce(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			snaps := store.NewRedis(rdb, "compat", time.Hour)
			ctx := context.Background()

			snap := store.PendingFormSnapshot{
				FormID:  "loan-application",
				Fields:  map[string]string{"applicant": "R. Villanueva", "amount": "25000"},
				SavedAt: time.Now().UTC().Truncate(time.Second),
			}
			if err := snaps.SaveSnapshot(ctx, snap); err != nil {
				t.Fatalf("save snapshot: %v", err)
			}

			got, err := snaps.TakeSnapshot(ctx, "loan-application")
			if err != nil {
				t.Fatalf("take: %v", err)
			}
			if got.Fields["applicant"] != "R. Villanueva" {
				t.Errorf("snapshot fields lost in round trip: %+v", got.Fields)
			}

			if _, err := snaps.TakeSnapshot(ctx, "loan-application"); !errors.Is(err, store.ErrNoSnapshot) {
				t.Errorf("expected ErrNoSnapshot on second take, got %v", err)
			}
		})
	}
}

// TestRedisCompat_PrefixIsolation validates that two console installs sharing
// one Redis do not see each other's session.
func TestRedisCompat_PrefixIsolation(t *testing.T) {
	issuer := newIntegrationIssuer(t, time.Hour)
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			deskA := store.NewRedis(rdb, "desk-a", time.Hour)
			deskB := store.NewRedis(rdb, "desk-b", time.Hour)
			ctx := context.Background()

			if err := deskA.Save(ctx, makePair(t, issuer, "Dana Okafor", "credit-officer", "refresh-a")); err != nil {
				t.Fatalf("save desk-a: %v", err)
			}

			if _, err := deskB.Load(ctx); !errors.Is(err, store.ErrNoPair) {
				t.Errorf("desk-b must not see desk-a's pair, got %v", err)
			}

			if err := deskB.Clear(ctx); err != nil {
				t.Fatalf("clear desk-b: %v", err)
			}
			if _, err := deskA.Load(ctx); err != nil {
				t.Errorf("desk-a's pair must survive desk-b's clear, got %v", err)
			}
		})
	}
}
