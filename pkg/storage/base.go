package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/rs/zerolog"
)

// baseStore carries what the SQL backends share; they differ in driver,
// dialect and DDL only
type baseStore struct {
	db      *sql.DB
	dialect sqlb.Dialect
	schema  []string
	logger  zerolog.Logger

	hooksMu sync.RWMutex
	hooks   []StatementHook
}

func (s *baseStore) snapshotHooks() []StatementHook {
	s.hooksMu.RLock()
	defer s.hooksMu.RUnlock()

	return s.hooks
}

// OnStatement registers a statement hook
func (s *baseStore) OnStatement(hook StatementHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()

	hooks := make([]StatementHook, len(s.hooks), len(s.hooks)+1)
	copy(hooks, s.hooks)
	s.hooks = append(hooks, hook)
}

// Begin opens a transaction-scoped connection
func (s *baseStore) Begin(ctx context.Context) (*Connection, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return newConnection(tx, s.dialect, s.snapshotHooks, s.logger), nil
}

// Reader returns a handle on the pool for read-only statements
func (s *baseStore) Reader() DB {
	return &observed{q: s.db, hooks: s.snapshotHooks, logger: s.logger}
}

// Dialect returns the store's SQL dialect
func (s *baseStore) Dialect() sqlb.Dialect { return s.dialect }

// Migrate creates the tables and indexes and records the schema version
func (s *baseStore) Migrate(ctx context.Context) error {
	conn, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, stmt := range s.schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	mark, args := sqlb.InsertInto("schema_version", "version").
		Values(SchemaVersion).
		OnConflictDoNothing("version").
		Build(s.dialect)
	if _, err := conn.ExecContext(ctx, mark, args...); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return conn.Commit()
}

// Close closes the pool
func (s *baseStore) Close() error {
	return s.db.Close()
}
