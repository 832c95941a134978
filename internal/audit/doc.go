// Package audit implements async journaling of operator-visible console actions.
//
// # Components
//
//   - [Sink] — interface for record consumers (channel, JSON writer, no-op).
//   - [Dispatcher] — buffered async relay with drop-if-full / block-if-full semantics.
//   - [Record] — structured journal entry with timestamp, action, actor, role, origin, detail.
//
// # Architecture boundaries
//
// This package owns record buffering and sink delivery. It does NOT decide which
// actions to journal — that responsibility belongs to the Coordinator and the API
// client.
//
// # What this package must NOT do
//
//   - Filter or suppress records based on business logic.
//   - Import backoffice or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
