// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// The catalog is two small tables on a single server. An embedded database
// stored in one local file needs no separate server to install or manage,
// and ":memory:" gives every test its own throwaway database.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C compiler.
//
// CONCURRENCY:
// SQLite serializes writers itself. Every connection is opened with a
// busy_timeout so a writer that finds the database locked waits for its turn
// instead of failing immediately with SQLITE_BUSY. That is all the
// coordination the store needs: the one read-modify-write (starring) is a
// single UPDATE statement, which SQLite executes atomically.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// migrationsFS holds the goose migrations compiled into the binary, so a
// fresh deployment needs nothing but the executable.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// connPragmas are applied by the driver to every new pool connection.
//
//   - busy_timeout: wait up to 5s for a competing writer instead of SQLITE_BUSY
//   - journal_mode(WAL): readers don't block the writer and vice versa
//   - _time_format=sqlite: store time.Time as "YYYY-MM-DD HH:MM:SS.fff+00:00",
//     which sorts the same way as CURRENT_TIMESTAMP defaults
//
// Foreign keys stay off (SQLite's default): a project may reference a user
// that does not exist.
const connPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"

// DB wraps a sql.DB connection pool and provides repository methods.
// It implements both repository.UserRepository and repository.ProjectRepository.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and brings its schema
// up to date.
//
// dbPath examples:
//   - "data/database.sqlite" → file-based database (persistent)
//   - ":memory:"             → in-memory database (tests)
func New(ctx context.Context, dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath+"?"+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database.
	// Pinning the pool to one connection keeps all callers on the same one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// sql.Open is lazy; Ping surfaces a bad path or permissions right away.
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// migrate applies any pending goose migrations. goose records the applied
// versions in its own table, so running this on every startup is idempotent.
func (db *DB) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db.conn, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}
