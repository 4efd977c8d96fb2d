// Package database provides SQLite connectivity for the BIOCAT bridge.
//
// It wraps database/sql with the mattn/go-sqlite3 driver, configured for
// a single-writer embedded database: WAL mode, busy timeout, restrictive
// file permissions and a one-connection pool. The snapshot history store
// builds its schema on top of this package.
package database
