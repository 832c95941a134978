// Package capability provides the console's capability vocabulary, a 64-bit
// capability mask, and a role-to-mask manager used by route guards and by
// screens that pre-hide controls the operator cannot use.
//
// # Vocabulary
//
// Capabilities are dotted strings ("users.manage", "decisions.view").
// Bit positions are assigned by [Registry.Register] at boot and are stable
// for the lifetime of the process; the registry is frozen before serving.
// Roles, by contrast, are editable at runtime: the roles screen rewrites
// them through [RoleManager.SetRole], and a version counter lets cached UI
// affordances notice the change.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O.
//
// # What this package must NOT do
//
//   - Access the network or any store.
//   - Import backoffice, guard, or client.
//   - Grow past 64 capabilities; the mask width is fixed.
package capability
