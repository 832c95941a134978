package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotScanCount = 128

// Redis is a [TokenStore] and [SnapshotStore] backed by a shared Redis
// instance, for kiosk-style installs where several console processes on one
// workstation hand the operator's session to each other. The prefix scopes
// every key, so one Redis can serve several console installs.
//
//	Docs: docs/store.md
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis describes the newredis operation and its observable behavior.
//
// NewRedis may return an error when input validation, dependency calls, or security checks fail.
// NewRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "backoffice"
	}
	return &Redis{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *Redis) pairKey() string {
	return r.prefix + ":pair"
}

func (r *Redis) snapshotKey(formID string) string {
	return r.prefix + ":snap:" + formID
}

func (r *Redis) snapshotPattern() string {
	return r.prefix + ":snap:*"
}

// Load retrieves the persisted token pair. Absence maps to [ErrNoPair];
// every transport or decode failure is wrapped as [ErrStoreUnavailable].
//
//	Performance: 1 Redis GET.
//	Docs: docs/store.md
func (r *Redis) Load(ctx context.Context) (TokenPair, error) {
	data, err := r.redis.Get(ctx, r.pairKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return TokenPair{}, ErrNoPair
		}
		return TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var pair TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if pair.Empty() {
		return TokenPair{}, ErrNoPair
	}
	return pair, nil
}

// Save persists the token pair. A zero store TTL keeps the pair until the
// next Clear; a non-zero TTL lets Redis expire abandoned sessions on its
// own.
//
//	Performance: 1 Redis SET.
//	Docs: docs/store.md
func (r *Redis) Save(ctx context.Context, pair TokenPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := r.redis.Set(ctx, r.pairKey(), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Clear describes the clear operation and its observable behavior.
//
// Clear may return an error when input validation, dependency calls, or security checks fail.
// Clear does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.redis.Del(ctx, r.pairKey()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// SaveSnapshot describes the savesnapshot operation and its observable behavior.
//
// SaveSnapshot may return an error when input validation, dependency calls, or security checks fail.
// SaveSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) SaveSnapshot(ctx context.Context, snap PendingFormSnapshot) error {
	if snap.FormID == "" {
		return errors.New("form id empty")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := r.redis.Set(ctx, r.snapshotKey(snap.FormID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// TakeSnapshot removes and returns the snapshot for formID, so a restored
// snapshot is offered at most once even when two console processes race.
//
//	Performance: 1 Redis GETDEL (atomic take).
//	Docs: docs/store.md
func (r *Redis) TakeSnapshot(ctx context.Context, formID string) (PendingFormSnapshot, error) {
	data, err := r.redis.GetDel(ctx, r.snapshotKey(formID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return PendingFormSnapshot{}, ErrNoSnapshot
		}
		return PendingFormSnapshot{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var snap PendingFormSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return PendingFormSnapshot{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return snap, nil
}

// ListSnapshots describes the listsnapshots operation and its observable behavior.
//
// ListSnapshots may return an error when input validation, dependency calls, or security checks fail.
// ListSnapshots does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) ListSnapshots(ctx context.Context) ([]PendingFormSnapshot, error) {
	keys, err := r.snapshotKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []PendingFormSnapshot{}, nil
	}

	cmds, err := r.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Get(ctx, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]PendingFormSnapshot, 0, len(cmds))
	for _, cmd := range cmds {
		data, cmdErr := cmd.(*redis.StringCmd).Bytes()
		if errors.Is(cmdErr, redis.Nil) {
			// Taken or expired between the scan and the read.
			continue
		}
		if cmdErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, cmdErr)
		}

		var snap PendingFormSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			continue
		}
		out = append(out, snap)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].FormID < out[j].FormID })
	return out, nil
}

// ClearSnapshots describes the clearsnapshots operation and its observable behavior.
//
// ClearSnapshots may return an error when input validation, dependency calls, or security checks fail.
// ClearSnapshots does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) ClearSnapshots(ctx context.Context) error {
	keys, err := r.snapshotKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (r *Redis) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

func (r *Redis) snapshotKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.redis.Scan(ctx, 0, r.snapshotPattern(), snapshotScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return keys, nil
}
