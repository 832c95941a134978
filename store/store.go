package store

import (
	"context"
	"errors"
	"time"
)

// ErrNoPair is an exported constant or variable used by the session coordinator.
var ErrNoPair = errors.New("no token pair in storage")

// ErrStoreUnavailable is an exported constant or variable used by the session coordinator.
var ErrStoreUnavailable = errors.New("storage unavailable")

// ErrNoSnapshot is returned when no pending form snapshot exists for the requested form.
var ErrNoSnapshot = errors.New("no pending form snapshot")

// TokenPair defines a public type used by backoffice APIs.
//
// TokenPair instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty describes the empty operation and its observable behavior.
//
// Empty may return an error when input validation, dependency calls, or security checks fail.
// Empty does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p TokenPair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// PendingFormSnapshot is an opaque key/value bag a screen registers before
// navigating away, so a forced logout does not lose data entry. Advisory
// only; no integrity guarantee.
type PendingFormSnapshot struct {
	FormID  string            `json:"form_id"`
	Fields  map[string]string `json:"fields,omitempty"`
	SavedAt time.Time         `json:"saved_at"`
}

// TokenStore is the storage boundary the session coordinator reads through.
// Load returns [ErrNoPair] when nothing is persisted; every other failure is
// wrapped as [ErrStoreUnavailable].
type TokenStore interface {
	Load(ctx context.Context) (TokenPair, error)
	Save(ctx context.Context, pair TokenPair) error
	Clear(ctx context.Context) error
}

// SnapshotStore persists pending form snapshots keyed by form ID. Take is
// read-and-delete so a restored snapshot is offered at most once.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap PendingFormSnapshot) error
	TakeSnapshot(ctx context.Context, formID string) (PendingFormSnapshot, error)
	ListSnapshots(ctx context.Context) ([]PendingFormSnapshot, error)
	ClearSnapshots(ctx context.Context) error
}

func cloneFields(fields map[string]string) map[string]string {
	if fields == nil {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func cloneSnapshot(snap PendingFormSnapshot) PendingFormSnapshot {
	snap.Fields = cloneFields(snap.Fields)
	return snap
}
