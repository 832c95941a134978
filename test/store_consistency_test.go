//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lendkit/backoffice/store"
)

func TestStoreConsistencyClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tokens, _, cleanup := newIntegrationStore(t)
	defer cleanup()

	issuer := newIntegrationIssuer(t, time.Hour)
	if err := tokens.Save(ctx, makePair(t, issuer, "Dana Okafor", "credit-officer", "refresh-1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := tokens.Clear(ctx); err != nil {
		t.Fatalf("first Clear failed: %v", err)
	}
	if err := tokens.Clear(ctx); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}

	if _, err := tokens.Load(ctx); !errors.Is(err, store.ErrNoPair) {
		t.Fatalf("expected ErrNoPair after clear, got %v", err)
	}
}

func TestStoreConsistencyTakeIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	snaps, _, cleanup := newIntegrationStore(t)
	defer cleanup()

	snap := store.PendingFormSnapshot{
		FormID:  "loan-app-42",
		Fields:  map[string]string{"applicant": "R. Villanueva", "amount": "25000"},
		SavedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := snaps.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, err := snaps.TakeSnapshot(ctx, "loan-app-42")
	if err != nil {
		t.Fatalf("first TakeSnapshot failed: %v", err)
	}
	if got.Fields["applicant"] != "R. Villanueva" || got.Fields["amount"] != "25000" {
		t.Fatalf("snapshot fields lost in round trip: %+v", got.Fields)
	}

	if _, err := snaps.TakeSnapshot(ctx, "loan-app-42"); !errors.Is(err, store.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot on second take, got %v", err)
	}
}

func TestStoreConsistencyPairAndSnapshotsIndependent(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := newIntegrationStore(t)
	defer cleanup()

	issuer := newIntegrationIssuer(t, time.Hour)
	if err := st.Save(ctx, makePair(t, issuer, "Dana Okafor", "credit-officer", "refresh-1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	snap := store.PendingFormSnapshot{
		FormID:  "loan-app-9",
		Fields:  map[string]string{"amount": "12000"},
		SavedAt: time.Now().UTC(),
	}
	if err := st.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	// Signing out drops the pair but must keep drafts for the next sign-in.
	if err := st.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	listed, err := st.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(listed) != 1 || listed[0].FormID != "loan-app-9" {
		t.Fatalf("snapshot must survive a pair clear, got %+v", listed)
	}

	// And discarding drafts must not sign the operator out.
	if err := st.Save(ctx, makePair(t, issuer, "Dana Okafor", "credit-officer", "refresh-2")); err != nil {
		t.Fatalf("re-save failed: %v", err)
	}
	if err := st.ClearSnapshots(ctx); err != nil {
		t.Fatalf("ClearSnapshots failed: %v", err)
	}
	if _, err := st.Load(ctx); err != nil {
		t.Fatalf("pair must survive a snapshot clear, got %v", err)
	}
	listed, err = st.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots after clear failed: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected no snapshots after clear, got %d", len(listed))
	}
}
