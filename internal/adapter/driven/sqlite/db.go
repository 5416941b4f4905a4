// Package sqlite is the local-store adapter: encrypted platform credentials
// and the audit log. Mapping records never land here; they live in the
// platform's own store.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB bundles the two connection pools the service holds against one SQLite
// file. The writer pool is pinned to a single connection so writes never
// trip over each other with "database is locked"; WAL mode lets the reader
// pool serve queries while a write is in flight.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// Open opens the database at path with the service's standard pragmas.
func Open(path string) (*DB, error) {
	uri := dsn(path)

	writer, err := openPool(uri, 1)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	reader, err := openPool(uri, 4)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader, path: path}, nil
}

// Close closes both pools and returns the first error seen.
func (db *DB) Close() error {
	readerErr := db.Reader.Close()
	writerErr := db.Writer.Close()
	if readerErr != nil {
		return fmt.Errorf("close reader: %w", readerErr)
	}
	if writerErr != nil {
		return fmt.Errorf("close writer: %w", writerErr)
	}
	return nil
}

func openPool(uri string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxConns)
	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}

// dsn builds the connection string: WAL journaling, a 5s busy timeout,
// NORMAL sync, foreign keys on, and a 64MB page cache.
func dsn(path string) string {
	return "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=cache_size(-64000)"
}
