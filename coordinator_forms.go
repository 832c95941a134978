package backoffice

import (
	"context"
	"fmt"

	internalaudit "github.com/lendkit/backoffice/internal/audit"
	internalevents "github.com/lendkit/backoffice/internal/events"
	"github.com/lendkit/backoffice/store"
)

// SaveFormSnapshot persists a pending form's field values so a timeout or
// forced logout does not lose in-progress data entry. Snapshots are keyed
// by form ID; saving the same ID again replaces the previous snapshot.
//
//	Docs: docs/session.md
func (c *Coordinator) SaveFormSnapshot(ctx context.Context, snap PendingFormSnapshot) error {
	if c == nil {
		return ErrNotInitialized
	}
	if c.snaps == nil {
		return ErrNoSnapshotStore
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = c.now()
	}

	saveCtx, cancel := context.WithTimeout(ctx, c.config.Session.StoreTimeout)
	defer cancel()
	if err := c.snaps.SaveSnapshot(saveCtx, snap); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	c.metricInc(MetricSnapshotSaved)
	c.publish(internalevents.TopicSnapshotSaved, snap.FormID)
	c.appendRecord(ctx, internalaudit.Record{
		Action:  actionSnapshotSaved,
		Success: true,
		Detail:  map[string]string{"form": snap.FormID},
	})
	return nil
}

// RestoreFormSnapshot takes the snapshot for formID out of the store and
// returns it. The take is destructive: a snapshot restores once, so stale
// data cannot resurface on a later visit.
//
// Returns [store.ErrNoSnapshot] when nothing is pending for formID.
//
//	Docs: docs/session.md
func (c *Coordinator) RestoreFormSnapshot(ctx context.Context, formID string) (PendingFormSnapshot, error) {
	if c == nil {
		return PendingFormSnapshot{}, ErrNotInitialized
	}
	if c.snaps == nil {
		return PendingFormSnapshot{}, ErrNoSnapshotStore
	}

	takeCtx, cancel := context.WithTimeout(ctx, c.config.Session.StoreTimeout)
	defer cancel()
	snap, err := c.snaps.TakeSnapshot(takeCtx, formID)
	if err != nil {
		return PendingFormSnapshot{}, err
	}

	c.metricInc(MetricSnapshotRestored)
	c.appendRecord(ctx, internalaudit.Record{
		Action:  actionSnapshotRestored,
		Success: true,
		Detail:  map[string]string{"form": formID},
	})
	return snap, nil
}

// PendingSnapshots lists saved snapshots without consuming them, for a
// "you have unsaved work" banner after re-login.
func (c *Coordinator) PendingSnapshots(ctx context.Context) ([]PendingFormSnapshot, error) {
	if c == nil {
		return nil, ErrNotInitialized
	}
	if c.snaps == nil {
		return nil, ErrNoSnapshotStore
	}

	listCtx, cancel := context.WithTimeout(ctx, c.config.Session.StoreTimeout)
	defer cancel()
	return c.snaps.ListSnapshots(listCtx)
}
