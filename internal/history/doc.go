// Package history persists regression and benchmark results in SQLite so
// runs can be listed, audited, and gated after the fact.
//
// Each row keeps the queryable summary columns alongside the full result as
// JSON. The schema is versioned; a database written by a different schema
// version is rejected with ErrSchemaMismatch rather than migrated.
package history
