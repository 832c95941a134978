// Package store persists the console's token pair and best-effort pending
// form snapshots. Backends stand in for origin-scoped browser storage: an
// in-memory store for tests and embedded use, a file store (optionally sealed
// with a passphrase) for CLI token caches, and a Redis store for shared
// workstation fleets.
//
// All backends degrade the same way: an absent pair is [ErrNoPair], backend
// outages are wrapped as [ErrStoreUnavailable], and Clear is idempotent. The
// session coordinator treats every load failure as "no session".
package store
