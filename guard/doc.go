// Package guard exposes HTTP middleware that gates console routes on
// coordinator session state and capability checks.
//
// # Guards
//
//   - [RequireSession] — rejects requests without a live session.
//   - [RequireCapability] — additionally resolves the JWT role claim
//     through the capability role manager; missing capabilities are 403.
//   - [RequireSessionRedirect] / [RequireCapabilityRedirect] — redirect
//     browser navigation to the login route instead of writing 401.
//
// Each guard reads the coordinator's current identity and injects the
// validated claims into the request context for handlers
// ([IdentityFromContext]).
//
// # Architecture boundaries
//
// This package translates HTTP semantics into coordinator and capability
// lookups. It does NOT implement session logic itself — liveness is
// whatever [backoffice.Coordinator.Identity] reports at request time.
//
// # What this package must NOT do
//
//   - Parse JWTs directly (the coordinator already holds the claims).
//   - Touch the token store or the bus.
//   - Make authorization decisions beyond the role manager's answer.
package guard
