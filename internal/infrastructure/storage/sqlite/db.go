// Package sqlite is the device-local store of the ledger.
//
// All entity kinds, the numbering state, the outbox queue and the audit
// trail share one SQLite database. Queries are built with squirrel and
// scanned with scany; the driver is the cgo-free glebarez/go-sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/glebarez/go-sqlite"

	"fieldledger/pkg/logger"
)

const driverName = "sqlite"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config holds local store configuration.
type Config struct {
	// Path is a file path or MemoryPath.
	Path string
	// BusyTimeout bounds how long a write waits for a lock held by another process.
	BusyTimeout time.Duration
}

// DefaultConfig returns defaults for a file database at path.
func DefaultConfig(path string) Config {
	return Config{Path: path, BusyTimeout: 5 * time.Second}
}

// DB wraps the database handle together with its transaction manager.
type DB struct {
	*sql.DB
	tx *TxManager
}

// Open opens (and creates when missing) the database and applies the schema.
//
// SQLite allows one writer at a time, so the pool is limited to a single
// connection; this also keeps a MemoryPath database alive for the lifetime
// of the handle.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	raw, err := sql.Open(driverName, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	raw.SetConnMaxLifetime(0)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
	}
	if cfg.Path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := raw.ExecContext(ctx, p); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	db := &DB{DB: raw, tx: NewTxManager(raw)}
	if err := db.Migrate(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	logger.Debug(ctx, "local store opened", "path", cfg.Path)
	return db, nil
}

// TxManager returns the transaction manager bound to this database.
func (db *DB) TxManager() *TxManager {
	return db.tx
}

// Migrate applies the bootstrap schema. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

// builder returns a squirrel builder with SQLite placeholders.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}
