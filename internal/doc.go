// Package internal groups the engines that back the public backoffice API.
//
// # Sub-packages
//
//   - audit — async journal dispatch (Dispatcher + Sink implementations)
//   - events — notification bus fanout with backlog and dedupe
//   - metrics — lock-free counters and latency histograms
//
// # What these packages must NOT do
//
//   - Export types that appear in the public backoffice API surface
//     (the root package re-exports what callers need).
//   - Be imported by any package outside the backoffice module.
//   - Import one another; the root package is the only composition point.
package internal
