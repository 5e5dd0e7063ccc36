// Package database is the thin gateway to the embedded DuckDB catalog
// database: open/close, full-text extension loading, collation
// discovery, and checkpointing.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Embedded DuckDB driver, registered as "duckdb".
	_ "github.com/marcboeker/go-duckdb/v2"
)

// InMemory is the DSN for a transient in-memory database.
const InMemory = ""

// Open opens the DuckDB database at path (InMemory for a transient
// one). The connection pool is capped at a single connection: the
// catalog is the sole writer and serialises its own transactions.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("database: opening %q: %w", path, err)
	}

	// Sole-writer pattern: one connection, never recycled. In-memory
	// databases live and die with their connection, so the pool must
	// pin it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: pinging %q: %w", path, err)
	}

	logger.Debug("database: opened", slog.String("path", path))

	return db, nil
}

// LoadFTS installs and loads the full-text search extension. INSTALL is
// best-effort (a no-op when the extension is already present); the
// error from a failed LOAD is returned so callers can defer search
// availability.
func LoadFTS(ctx context.Context, db *sql.DB) error {
	_, installErr := db.ExecContext(ctx, `INSTALL fts`)

	if _, err := db.ExecContext(ctx, `LOAD fts`); err != nil {
		if installErr != nil {
			return fmt.Errorf("database: loading fts extension: %w (install: %v)", err, installErr)
		}

		return fmt.Errorf("database: loading fts extension: %w", err)
	}

	return nil
}

// Collations returns the set of collation names the database supports.
func Collations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT collname FROM pragma_collations()`)
	if err != nil {
		return nil, fmt.Errorf("database: listing collations: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("database: scanning collation: %w", err)
		}

		out[name] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: iterating collations: %w", err)
	}

	return out, nil
}

// Checkpoint forces the write-ahead log to disk. The store calls it
// after a write stream commits and after copy, trash and delete, so
// those calls return only once the catalog is on disk; metadata updates
// and moves are not checkpointed.
func Checkpoint(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CHECKPOINT`); err != nil {
		return fmt.Errorf("database: checkpoint: %w", err)
	}

	return nil
}
