// Package backoffice provides the client-side session plumbing for a
// lending-institution admin console: a timeout-tracking session
// coordinator, pluggable token and form-snapshot stores, a notification
// bus, capability-based route guards, and an API client that refreshes
// expired access tokens transparently.
//
// The package is designed for a long-lived console process: Coordinator
// methods are safe to call from multiple goroutines after construction
// through [Builder.Build], and all timeout callbacks run on a single
// internal goroutine.
//
// # Architecture boundaries
//
// backoffice is the public surface. It exposes [Coordinator], [Builder],
// [Config], and value types (Session, TimeoutWarningState,
// LifecycleReport, etc.). All internal coordination — event fan-out,
// journal dispatch, metric counters — lives under internal/ and is never
// exported directly; the root re-exports the types callers need.
//
// # What this package must NOT do
//
//   - Talk to the authentication server. Refreshing tokens is the API
//     client's job; the coordinator only observes the outcome through the
//     bus and the store.
//   - Surface storage failures to callers of session accessors. A broken
//     store degrades to the logged-out state and is logged and counted,
//     never returned.
//   - Import any sub-package that re-imports backoffice (no import cycles).
//
// # Liveness contract
//
// AccessToken, IsAuthenticated, and State are hot-path reads. They compute
// expiry from the clock on every call, so an expired session never reports
// authenticated even between timer ticks, and they never block on the
// store or the bus.
package backoffice
