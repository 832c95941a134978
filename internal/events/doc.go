// Package events implements the cross-cutting notification bus that keeps
// unrelated console surfaces consistent without prop-drilling.
//
// # Components
//
//   - [Bus] — topic fanout with bounded subscriber buffers, a short
//     pre-subscription backlog per topic, and duplicate suppression by ID.
//   - [Event] — notification envelope: ID, topic, timestamp, opaque payload.
//   - [Subscription] — live attachment; Close detaches.
//
// # Architecture boundaries
//
// This package owns delivery semantics only. Payload types and the decision
// of what to publish belong to the coordinator and the API client.
//
// # What this package must NOT do
//
//   - Inspect payloads.
//   - Import backoffice or any sibling internal package.
//   - Block a publisher on a slow subscriber.
package events
