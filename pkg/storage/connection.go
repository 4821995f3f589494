package storage

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/rs/zerolog"
)

// observed runs statements against q, notifying hooks and trace-logging timings
type observed struct {
	q      DB
	hooks  func() []StatementHook
	logger zerolog.Logger
}

func (o *observed) notify(ctx context.Context, query string, args []any) {
	if o.hooks == nil {
		return
	}
	for _, hook := range o.hooks() {
		hook(ctx, query, args)
	}
}

func (o *observed) trace(query string, start time.Time, err error) {
	o.logger.Trace().
		Str("sql", query).
		Dur("took", time.Since(start)).
		Err(err).
		Msg("statement")
}

// ExecContext executes a statement that returns no rows
func (o *observed) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	o.notify(ctx, query, args)
	start := time.Now()
	res, err := o.q.ExecContext(ctx, query, args...)
	o.trace(query, start, err)
	return res, err
}

// QueryContext executes a statement that returns rows
func (o *observed) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	o.notify(ctx, query, args)
	start := time.Now()
	rows, err := o.q.QueryContext(ctx, query, args...)
	o.trace(query, start, err)
	return rows, err
}

// QueryRowContext executes a statement expected to return at most one row
func (o *observed) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	o.notify(ctx, query, args)
	start := time.Now()
	row := o.q.QueryRowContext(ctx, query, args...)
	o.trace(query, start, row.Err())
	return row
}

// Connection is the transaction handle every reconciliation runs on. It is
// exclusive to one reconciliation and must be released on every exit path.
type Connection struct {
	observed
	tx      *sql.Tx
	dialect sqlb.Dialect

	mu       sync.Mutex
	finished bool
}

func newConnection(tx *sql.Tx, dialect sqlb.Dialect, hooks func() []StatementHook, logger zerolog.Logger) *Connection {
	return &Connection{
		observed: observed{q: tx, hooks: hooks, logger: logger},
		tx:       tx,
		dialect:  dialect,
	}
}

// Dialect returns the SQL dialect of the underlying store
func (c *Connection) Dialect() sqlb.Dialect { return c.dialect }

// Commit commits the transaction
func (c *Connection) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return sql.ErrTxDone
	}
	c.finished = true
	return c.tx.Commit()
}

// Rollback aborts the transaction
func (c *Connection) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return sql.ErrTxDone
	}
	c.finished = true
	return c.tx.Rollback()
}

// Release rolls back a transaction that was neither committed nor rolled
// back. It is safe to call any number of times.
func (c *Connection) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return
	}
	c.finished = true
	if err := c.tx.Rollback(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to roll back released connection")
	}
}

// WithTransaction runs fn on a fresh connection, committing if fn succeeds and
// rolling back otherwise
func WithTransaction(ctx context.Context, store Store, fn func(*Connection) error) error {
	conn, err := store.Begin(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if err := fn(conn); err != nil {
		if rbErr := conn.Rollback(); rbErr != nil {
			conn.logger.Warn().Err(rbErr).Msg("Rollback failed")
		}
		return err
	}

	return conn.Commit()
}
