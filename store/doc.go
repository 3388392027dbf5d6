// Package store owns the database connection underneath rowgate.
//
// A Store wraps a *sql.DB (or an open *sql.Tx) together with the SQL dialect
// of its driver and a cache of reflected table metadata. Everything above it
// (selections, managers, entities) talks to the database only through Store.
//
// # Drivers
//
//   - sqlite3: github.com/mattn/go-sqlite3, "?" placeholders, LastInsertId
//   - pgx: github.com/jackc/pgx/v5/stdlib, "$n" placeholders, RETURNING
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// # Reflection
//
// Table returns the columns and primary key of a table. Results are kept in an
// LRU cache shared by every transaction-bound copy of the store; Apply purges
// the cache because DDL may have changed the schema.
package store
