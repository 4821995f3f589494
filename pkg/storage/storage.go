package storage

import (
	"context"
	"database/sql"

	"github.com/ha1tch/fieldsync/pkg/sqlb"
)

// DB is the statement surface shared by *sql.DB, *sql.Tx and Connection
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store defines the core interface for row storage backends
type Store interface {
	// Begin opens a transaction-scoped connection
	Begin(ctx context.Context) (*Connection, error)
	// Reader returns a non-transactional handle for read paths
	Reader() DB
	Dialect() sqlb.Dialect

	// Migrate applies the schema; it is idempotent
	Migrate(ctx context.Context) error
	// OnStatement registers a hook that sees every statement before it runs
	OnStatement(hook StatementHook)

	Info() StoreInfo
	Close() error
}

// StatementHook observes a statement about to be executed
type StatementHook func(ctx context.Context, query string, args []any)

// StoreInfo provides metadata about the store implementation
type StoreInfo struct {
	Type          string // "sqlite", "postgres"
	Version       string
	SchemaVersion int
	// ConcurrentStatements is true when goroutines may interleave statements
	// (including open result sets) on one transaction
	ConcurrentStatements bool
}
