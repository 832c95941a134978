package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process [TokenStore] and [SnapshotStore] for tests and
// embedded use.
type Memory struct {
	mu        sync.RWMutex
	pair      TokenPair
	hasPair   bool
	snapshots map[string]PendingFormSnapshot
}

// NewMemory describes the newmemory operation and its observable behavior.
//
// NewMemory may return an error when input validation, dependency calls, or security checks fail.
// NewMemory does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemory() *Memory {
	return &Memory{
		snapshots: make(map[string]PendingFormSnapshot),
	}
}

// Load describes the load operation and its observable behavior.
//
// Load may return an error when input validation, dependency calls, or security checks fail.
// Load does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) Load(_ context.Context) (TokenPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasPair {
		return TokenPair{}, ErrNoPair
	}
	return m.pair, nil
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) Save(_ context.Context, pair TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
	m.hasPair = true
	return nil
}

// Clear describes the clear operation and its observable behavior.
//
// Clear may return an error when input validation, dependency calls, or security checks fail.
// Clear does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = TokenPair{}
	m.hasPair = false
	return nil
}

// SaveSnapshot describes the savesnapshot operation and its observable behavior.
//
// SaveSnapshot may return an error when input validation, dependency calls, or security checks fail.
// SaveSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) SaveSnapshot(_ context.Context, snap PendingFormSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.FormID] = cloneSnapshot(snap)
	return nil
}

// TakeSnapshot describes the takesnapshot operation and its observable behavior.
//
// TakeSnapshot may return an error when input validation, dependency calls, or security checks fail.
// TakeSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) TakeSnapshot(_ context.Context, formID string) (PendingFormSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[formID]
	if !ok {
		return PendingFormSnapshot{}, ErrNoSnapshot
	}
	delete(m.snapshots, formID)
	return cloneSnapshot(snap), nil
}

// ListSnapshots describes the listsnapshots operation and its observable behavior.
//
// ListSnapshots may return an error when input validation, dependency calls, or security checks fail.
// ListSnapshots does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) ListSnapshots(_ context.Context) ([]PendingFormSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PendingFormSnapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		out = append(out, cloneSnapshot(snap))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FormID < out[j].FormID })
	return out, nil
}

// ClearSnapshots describes the clearsnapshots operation and its observable behavior.
//
// ClearSnapshots may return an error when input validation, dependency calls, or security checks fail.
// ClearSnapshots does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) ClearSnapshots(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = make(map[string]PendingFormSnapshot)
	return nil
}
