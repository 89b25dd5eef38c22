// Package db opens the scan results database and manages its schema.
//
// The schema is owned by the numbered migrations under migrations/, which are
// embedded in the binary and applied with golang-migrate.
package db

import (
	"database/sql"
	"fmt"
	"io"
	"net/url"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/scanprofile/internal/monitoring"
)

var logs monitoring.Streams

// SetLogWriters configures the three logging streams for the db package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	logs = monitoring.NewStreams("[db] ", ops, diag, trace)
}

// Pragmas applied to every pooled connection.
var Pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(ON)",
}

// DB wraps the shared connection pool.
type DB struct {
	*sql.DB
	path string
}

// dsn builds a modernc connection string that applies Pragmas on connect.
func dsn(path string) string {
	q := url.Values{}
	for _, p := range Pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// OpenDB opens the database without touching the schema. Use it for
// migration commands that must inspect a database as it is.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// NewDB opens the database and applies all pending embedded migrations.
func NewDB(path string) (*DB, error) {
	d, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	fsys, err := MigrationsFS()
	if err != nil {
		d.Close()
		return nil, err
	}
	if err := d.MigrateUp(fsys); err != nil {
		d.Close()
		return nil, err
	}
	version, _, err := d.MigrateVersion(fsys)
	if err != nil {
		d.Close()
		return nil, err
	}
	logs.Diagf("opened %s at schema version %d", path, version)
	return d, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string { return db.path }
