// Package repository holds the per-kind entity syncers. Each repository
// writes one table (or one table family) through a storage.DB, usually the
// transaction-scoped storage.Connection of a reconciliation.
//
// Writes use RETURNING so the affected rows are counted by the statement
// itself. A write that touches fewer rows than required fails with
// storage.PersistenceError. Deletes given an empty id set issue no statement.
package repository

import (
	"context"

	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

type base struct {
	db      storage.DB
	dialect sqlb.Dialect
}

// returningIDs runs a statement with a single-column RETURNING clause and
// collects the returned keys. The result set is always drained so that
// deferred constraint errors surface.
func (b base) returningIDs(ctx context.Context, op, query string, args []any) ([]int64, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.ClassifyError(op, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storage.ClassifyError(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.ClassifyError(op, err)
	}
	if err := rows.Close(); err != nil {
		return nil, storage.ClassifyError(op, err)
	}
	return ids, nil
}

// returningID runs a single-row write and requires exactly one returned key
func (b base) returningID(ctx context.Context, op, query string, args []any) (int64, error) {
	ids, err := b.returningIDs(ctx, op, query, args)
	if err != nil {
		return 0, err
	}
	if err := storage.ExpectRows(op, 1, len(ids)); err != nil {
		return 0, err
	}
	return ids[0], nil
}

// deleteIDs deletes by key and requires every id to have been removed
func (b base) deleteIDs(ctx context.Context, op string, stmt *sqlb.DeleteStmt, want int) ([]int64, error) {
	query, args := stmt.Build(b.dialect)
	ids, err := b.returningIDs(ctx, op, query, args)
	if err != nil {
		return nil, err
	}
	if err := storage.ExpectRows(op, want, len(ids)); err != nil {
		return nil, err
	}
	return ids, nil
}

// nullable unwraps an optional value for binding; nil binds SQL NULL
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
