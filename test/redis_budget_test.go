//go:build integration
// +build integration

package test

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lendkit/backoffice/store"
)

// cmdCounter is a go-redis Hook that counts the number of Redis round-trips
// (individual commands and pipeline calls).
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		// Each pipeline call is one network round-trip regardless of command count.
		h.pipelines.Add(1)
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) Commands() int64  { return h.commands.Load() }
func (h *cmdCounter) Pipelines() int64 { return h.pipelines.Load() }

// newCountedStore creates a Redis-backed token store with a cmdCounter hook
// installed. go-redis may emit extra commands on first use (handshake, AUTH,
// SELECT, CLIENT SETNAME), so a warmup PING runs before the counter is reset
// and that noise never lands in a measured budget.
func newCountedStore(t *testing.T) (*store.Redis, *cmdCounter, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	counter := &cmdCounter{}
	rdb.AddHook(counter)

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter.Reset()

	return store.NewRedis(rdb, "budget", time.Hour), counter, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

// TestPairLoadRedisBudget verifies that loading the token pair uses a single
// Redis command. The coordinator re-reads the pair on every extend and every
// token-refreshed event, so this read sits on the console's hot path.
func TestPairLoadRedisBudget(t *testing.T) {
	tokens, counter, cleanup := newCountedStore(t)
	defer cleanup()

	ctx := context.Background()
	issuer := newIntegrationIssuer(t, time.Hour)
	if err := tokens.Save(ctx, makePair(t, issuer, "Dana Okafor", "credit-officer", "budget-load")); err != nil {
		t.Fatalf("save: %v", err)
	}

	counter.Reset()

	if _, err := tokens.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	cmds := counter.Commands()
	if cmds > 1 {
		t.Errorf("Load used %d Redis commands; budget is ≤ 1 (GET)", cmds)
	}
	t.Logf("Load: %d commands, %d pipelines", cmds, counter.Pipelines())
}

// TestPairSaveRedisBudget verifies that persisting a rotated pair is a single
// SET. Refresh rotations happen on every 401 retry, so save cost is user-visible.
func TestPairSaveRedisBudget(t *testing.T) {
	tokens, counter, cleanup := newCountedStore(t)
	defer cleanup()

	ctx := context.Background()
	issuer := newIntegrationIssuer(t, time.Hour)
	pair := makePair(t, issuer, "Dana Okafor", "credit-officer", "budget-save")

	counter.Reset()

	if err := tokens.Save(ctx, pair); err != nil {
		t.Fatalf("save: %v", err)
	}

	cmds := counter.Commands()
	if cmds > 1 {
		t.Errorf("Save used %d Redis commands; budget is ≤ 1 (SET)", cmds)
	}
	t.Logf("Save: %d commands, %d pipelines", cmds, counter.Pipelines())
}

// TestPairClearRedisBudget verifies that sign-out clears the pair with a
// single DEL.
func TestPairClearRedisBudget(t *testing.T) {
	tokens, counter, cleanup := newCountedStore(t)
	defer cleanup()

	ctx := context.Background()
	issuer := newIntegrationIssuer(t, time.Hour)
	if err := tokens.Save(ctx, makePair(t, issuer, "Dana Okafor", "credit-officer", "budget-clear")); err != nil {
		t.Fatalf("save: %v", err)
	}

	counter.Reset()

	if err := tokens.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	cmds := counter.Commands()
	if cmds > 1 {
		t.Errorf("Clear used %d Redis commands; budget is ≤ 1 (DEL)", cmds)
	}
	t.Logf("Clear: %d commands, %d pipelines", cmds, counter.Pipelines())
}

// TestSnapshotTakeRedisBudget verifies that taking a form snapshot is a
// single GETDEL. Splitting it into GET + DEL would open a window where two
// tabs restore the same draft.
func TestSnapshotTakeRedisBudget(t *testing.T) {
	snaps, counter, cleanup := newCountedStore(t)
	defer cleanup()

	ctx := context.Background()
	snap := store.PendingFormSnapshot{
		FormID:  "loan-application",
		Fields:  map[string]string{"amount": "25000"},
		SavedAt: time.Now().UTC(),
	}
	if err := snaps.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	counter.Reset()

	if _, err := snaps.TakeSnapshot(ctx, "loan-application"); err != nil {
		t.Fatalf("take: %v", err)
	}

	cmds := counter.Commands()
	if cmds > 1 {
		t.Errorf("TakeSnapshot used %d Redis commands; budget is ≤ 1 (GETDEL)", cmds)
	}
	t.Logf("TakeSnapshot: %d commands, %d pipelines", cmds, counter.Pipelines())
}

// TestSnapshotListRedisBudget verifies that listing pending snapshots pages
// with SCAN and fetches values through one pipeline instead of per-key GETs.
func TestSnapshotListRedisBudget(t *testing.T) {
	snaps, counter, cleanup := newCountedStore(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		snap := store.PendingFormSnapshot{
			FormID:  fmt.Sprintf("form-%d", i),
			Fields:  map[string]string{"field": "value"},
			SavedAt: time.Now().UTC(),
		}
		if err := snaps.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("save snapshot %d: %v", i, err)
		}
	}

	counter.Reset()

	listed, err := snaps.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(listed))
	}

	// One SCAN page covers three keys at count 128; the value reads ride a
	// single pipeline. The command budget leaves headroom for an extra SCAN
	// page but not for per-key round trips.
	cmds := counter.Commands()
	pipelines := counter.Pipelines()
	if cmds > 8 {
		t.Errorf("ListSnapshots used %d Redis commands; budget is ≤ 8 (SCAN + pipelined GETs)", cmds)
	}
	if pipelines > 1 {
		t.Errorf("ListSnapshots used %d pipelines; budget is ≤ 1", pipelines)
	}
	t.Logf("ListSnapshots: %d commands, %d pipelines", cmds, pipelines)
}
