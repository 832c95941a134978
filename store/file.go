package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// File persists the token pair and pending form snapshots as a single JSON
// document on local disk. Writes go through a temp file in the same
// directory followed by a rename, so readers never observe a partially
// written document. The file is created with mode 0600 and its parent
// directory with 0700.
//
// File is the default backend for single-operator console installs where
// no Redis is available.
//
//	Docs: docs/store.md
type File struct {
	path string
	seal *sealer

	mu sync.Mutex
}

// fileDoc is the on-disk layout. A nil Pair means logged out.
type fileDoc struct {
	Pair      *TokenPair                     `json:"pair,omitempty"`
	Snapshots map[string]PendingFormSnapshot `json:"snapshots,omitempty"`
}

// NewFile describes the newfile operation and its observable behavior.
//
// NewFile may return an error when input validation, dependency calls, or security checks fail.
// NewFile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("file path empty")
	}
	return &File{path: path}, nil
}

// Load describes the load operation and its observable behavior.
//
// Load may return an error when input validation, dependency calls, or security checks fail.
// Load does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *File) Load(_ context.Context) (TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return TokenPair{}, err
	}
	if doc.Pair == nil || doc.Pair.Empty() {
		return TokenPair{}, ErrNoPair
	}
	return *doc.Pair, nil
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *File) Save(_ context.Context, pair TokenPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readForUpdate()
	if err != nil {
		return err
	}
	doc.Pair = &pair
	return f.write(doc)
}

// Clear removes the persisted pair but leaves pending form snapshots in
// place, so a forced logout does not discard unsaved data entry.
func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readForUpdate()
	if err != nil {
		return err
	}
	if doc.Pair == nil {
		return nil
	}
	doc.Pair = nil
	return f.write(doc)
}

// SaveSnapshot describes the savesnapshot operation and its observable behavior.
//
// SaveSnapshot may return an error when input validation, dependency calls, or security checks fail.
// SaveSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *File) SaveSnapshot(_ context.Context, snap PendingFormSnapshot) error {
	if snap.FormID == "" {
		return errors.New("form id empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readForUpdate()
	if err != nil {
		return err
	}
	if doc.Snapshots == nil {
		doc.Snapshots = make(map[string]PendingFormSnapshot)
	}
	doc.Snapshots[snap.FormID] = cloneSnapshot(snap)
	return f.write(doc)
}

// TakeSnapshot describes the takesnapshot operation and its observable behavior.
//
// TakeSnapshot may return an error when input validation, dependency calls, or security checks fail.
// TakeSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *File) TakeSnapshot(_ context.Context, formID string) (PendingFormSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return PendingFormSnapshot{}, err
	}
	snap, ok := doc.Snapshots[formID]
	if !ok {
		return PendingFormSnapshot{}, ErrNoSnapshot
	}
	delete(doc.Snapshots, formID)
	if err := f.write(doc); err != nil {
		return PendingFormSnapshot{}, err
	}
	return snap, nil
}

// ListSnapshots describes the listsnapshots operation and its observable behavior.
//
// ListSnapshots may return an error when input validation, dependency calls, or security checks fail.
// ListSnapshots does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *File) ListSnapshots(_ context.Context) ([]PendingFormSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make([]PendingFormSnapshot, 0, len(doc.Snapshots))
	for _, snap := range doc.Snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FormID < out[j].FormID })
	return out, nil
}

// ClearSnapshots describes the clearsnapshots operation and its observable behavior.
//
// ClearSnapshots may return an error when input validation, dependency calls, or security checks fail.
// ClearSnapshots does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *File) ClearSnapshots(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readForUpdate()
	if err != nil {
		return err
	}
	if len(doc.Snapshots) == 0 {
		return nil
	}
	doc.Snapshots = nil
	return f.write(doc)
}

// read loads the document. A missing file is an empty document, not an
// error; any other failure is wrapped as [ErrStoreUnavailable].
func (f *File) read() (fileDoc, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileDoc{}, nil
		}
		return fileDoc{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return f.decode(raw)
}

// readForUpdate is read, except a corrupt document is discarded rather than
// surfaced: a write must be able to recover storage that a crashed writer
// or an operator edit left unparsable.
func (f *File) readForUpdate() (fileDoc, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileDoc{}, nil
		}
		return fileDoc{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	doc, err := f.decode(raw)
	if err != nil {
		return fileDoc{}, nil
	}
	return doc, nil
}

func (f *File) decode(raw []byte) (fileDoc, error) {
	if f.seal != nil {
		plain, err := f.seal.unseal(raw)
		if err != nil {
			return fileDoc{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		raw = plain
	}

	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fileDoc{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return doc, nil
}

func (f *File) encode(doc fileDoc) ([]byte, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if f.seal == nil {
		return raw, nil
	}
	return f.seal.sealBytes(raw)
}

func (f *File) write(doc fileDoc) error {
	raw, err := f.encode(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// os.CreateTemp opens with 0600; the rename carries the mode over.
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
