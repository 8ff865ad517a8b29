// Package domain defines the core business types for the La Pública platform.
//
// Types in this package are value objects shared by handlers, services,
// and repositories. They carry pure rules (state transitions, privacy
// filtering, proration arithmetic) but no I/O.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Validation methods are allowed (they're pure functions on the type)
//   - Constants and enums belong here
package domain
