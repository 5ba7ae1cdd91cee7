// Package database provides connection management over Bun for MySQL,
// PostgreSQL (lib/pq or pgx) and SQLite, configuration loading, logging,
// query hooks, driver error classification, transaction propagation through
// context.Context and SQL script execution.
package database
