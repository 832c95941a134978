// Package listing holds client-side list state for console table and card
// screens: free-text filtering over string projections, multi-key sorting,
// windowed pagination, and a selection cursor for keyboard navigation.
//
// A [List] is pure in-memory bookkeeping. Screens feed it rows they already
// fetched (usually one API page, sometimes a whole reference table) and
// read the visible window back on every render.
//
// The cursor is the single source of truth for position: the current page
// is the window containing the cursor, so arrowing past the bottom of a
// page lands on the next one without separate page state drifting out of
// sync.
//
// # What this package must NOT do
//
//   - Perform I/O or talk to the API client.
//   - Be shared across goroutines; confine each List to its screen's
//     render loop.
package listing
