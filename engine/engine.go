package engine

import (
	"database/sql"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./db.sqlite". For in-memory
// databases, pass ":memory:".
func Open(dsn string) (*sql.DB, error) { return sql.Open("sqlite", dsn) }

// Configure applies the pragmas used for databases shared between a host
// statement and the distance callbacks it triggers: WAL so readers do not
// block, and a busy timeout instead of immediate SQLITE_BUSY. Callbacks run
// on a second connection, so maxOpenConns should be at least 2.
func Configure(db *sql.DB, maxOpenConns int) error {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	_, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`)
	return err
}
