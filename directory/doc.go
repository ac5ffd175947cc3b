// Package directory provides the PostgreSQL-backed account store, wiring
// repository queries and schema migrations (via goose) behind the engine's
// Directory interface.
//
// The store speaks database/sql over the pgx stdlib driver. Uniqueness of
// email and username is enforced by the schema; constraint violations
// surface as the engine's conflict error so signup races resolve cleanly.
package directory
