// Package client is the typed HTTP client for the back-office API: console
// resources (users, roles, credit programs, decisions, reference tables)
// plus the authentication endpoints that feed the session coordinator.
//
// # Token plumbing
//
// Every authenticated request reads the current pair from the shared
// [store.TokenStore] and attaches the access token as a bearer header. On a
// 401 the client runs one refresh round-trip and replays the original
// request once. Concurrent 401s share a single refresh: one caller performs
// the round-trip, the rest wait for its result.
//
// A successful refresh persists the new pair and publishes a
// token-refreshed event on the shared bus; a rejected refresh clears the
// store and publishes auth-error. The session coordinator reacts to those
// events. The client never touches coordinator state directly.
//
// # What this package must NOT do
//
//   - Import the guard package or reach into coordinator internals.
//   - Cache tokens in memory; the store is the single source of truth.
//   - Clear the store on transport errors. Only a definitive rejection of
//     the refresh token ends the session.
package client
