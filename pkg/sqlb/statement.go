package sqlb

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Default makes the store assign the value of a key column in a VALUES row
var Default = defaultValue{}

type defaultValue struct{}

type cte struct {
	name string
	stmt *SelectStmt
}

// SelectStmt is a SELECT with static joins and a typed WHERE clause
type SelectStmt struct {
	b    sq.SelectBuilder
	with []cte
}

// Select starts a SELECT of the given column expressions
func Select(cols ...string) *SelectStmt {
	return &SelectStmt{b: sq.Select(cols...)}
}

// With declares a common table expression ahead of the SELECT. CTEs render in
// the order they are declared.
func (s *SelectStmt) With(name string, stmt *SelectStmt) *SelectStmt {
	s.with = append(s.with, cte{name: name, stmt: stmt})
	return s
}

// From sets the source table, with optional alias ("survey_sample_site s")
func (s *SelectStmt) From(table string) *SelectStmt {
	s.b = s.b.From(table)
	return s
}

// Join appends a static join clause
func (s *SelectStmt) Join(clause string) *SelectStmt {
	s.b = s.b.JoinClause(clause)
	return s
}

// Where adds a filter; several filters are ANDed. A nil predicate is ignored.
func (s *SelectStmt) Where(p Predicate) *SelectStmt {
	if p != nil {
		s.b = s.b.Where(p)
	}
	return s
}

// GroupBy sets the grouping expressions
func (s *SelectStmt) GroupBy(exprs ...string) *SelectStmt {
	s.b = s.b.GroupBy(exprs...)
	return s
}

// OrderBy sets the ordering expressions
func (s *SelectStmt) OrderBy(exprs ...string) *SelectStmt {
	s.b = s.b.OrderBy(exprs...)
	return s
}

func (s *SelectStmt) builder() sq.SelectBuilder {
	if len(s.with) == 0 {
		return s.b
	}
	parts := []any{"WITH "}
	for i, c := range s.with {
		if i > 0 {
			parts = append(parts, ", ")
		}
		parts = append(parts, c.name+" AS (", c.stmt, ")")
	}
	return s.b.PrefixExpr(sq.ConcatExpr(parts...))
}

// ToSql renders the statement with "?" markers so it can nest inside another
func (s *SelectStmt) ToSql() (string, []any, error) {
	return s.builder().ToSql()
}

// Build renders the statement for d. It panics on a malformed statement,
// which is a programming error.
func (s *SelectStmt) Build(d Dialect) (string, []any) {
	return s.builder().PlaceholderFormat(d.Placeholders()).MustSql()
}

// InsertStmt is a single- or multi-row INSERT
type InsertStmt struct {
	table    string
	columns  []string
	rows     [][]any
	conflict string
	returns  []string
}

// InsertInto starts an INSERT into table for the given columns
func InsertInto(table string, cols ...string) *InsertStmt {
	return &InsertStmt{table: table, columns: cols}
}

// Values appends one row; len(vals) must match the column list
func (s *InsertStmt) Values(vals ...any) *InsertStmt {
	s.rows = append(s.rows, vals)
	return s
}

// Len reports the number of rows queued
func (s *InsertStmt) Len() int { return len(s.rows) }

// OnConflictUpdate turns the insert into an upsert on target, replacing cols
// from the proposed row. where is a static condition over the table and the
// "excluded" pseudo-row; rows failing it are neither inserted nor updated.
func (s *InsertStmt) OnConflictUpdate(target string, cols []string, where string) *InsertStmt {
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = col + " = excluded." + col
	}
	s.conflict = "ON CONFLICT (" + target + ") DO UPDATE SET " + strings.Join(sets, ", ")
	if where != "" {
		s.conflict += " WHERE " + where
	}
	return s
}

// OnConflictDoNothing skips rows that collide on target
func (s *InsertStmt) OnConflictDoNothing(target string) *InsertStmt {
	s.conflict = "ON CONFLICT (" + target + ") DO NOTHING"
	return s
}

// Returning sets the RETURNING column list
func (s *InsertStmt) Returning(cols ...string) *InsertStmt {
	s.returns = cols
	return s
}

// Build renders the statement for d. Default values render as the dialect's
// store-assigned key expression.
func (s *InsertStmt) Build(d Dialect) (string, []any) {
	b := sq.Insert(s.table).Columns(s.columns...).PlaceholderFormat(d.Placeholders())
	for _, row := range s.rows {
		vals := make([]any, len(row))
		for i, v := range row {
			if _, ok := v.(defaultValue); ok {
				vals[i] = sq.Expr(d.DefaultKey())
				continue
			}
			vals[i] = v
		}
		b = b.Values(vals...)
	}
	if s.conflict != "" {
		b = b.Suffix(s.conflict)
	}
	if len(s.returns) > 0 {
		b = b.Suffix(returning(s.returns))
	}
	return b.MustSql()
}

// UpdateStmt is an UPDATE with a typed WHERE clause
type UpdateStmt struct {
	b sq.UpdateBuilder
}

// Update starts an UPDATE of table
func Update(table string) *UpdateStmt {
	return &UpdateStmt{b: sq.Update(table)}
}

// Set assigns a column
func (s *UpdateStmt) Set(col string, v any) *UpdateStmt {
	s.b = s.b.Set(col, v)
	return s
}

// Where adds a filter; several filters are ANDed. A nil predicate is ignored.
func (s *UpdateStmt) Where(p Predicate) *UpdateStmt {
	if p != nil {
		s.b = s.b.Where(p)
	}
	return s
}

// Returning sets the RETURNING column list
func (s *UpdateStmt) Returning(cols ...string) *UpdateStmt {
	s.b = s.b.Suffix(returning(cols))
	return s
}

// Build renders the statement for d
func (s *UpdateStmt) Build(d Dialect) (string, []any) {
	return s.b.PlaceholderFormat(d.Placeholders()).MustSql()
}

// DeleteStmt is a DELETE with a typed WHERE clause
type DeleteStmt struct {
	b sq.DeleteBuilder
}

// DeleteFrom starts a DELETE from table
func DeleteFrom(table string) *DeleteStmt {
	return &DeleteStmt{b: sq.Delete(table)}
}

// Where adds a filter; several filters are ANDed. A nil predicate is ignored.
func (s *DeleteStmt) Where(p Predicate) *DeleteStmt {
	if p != nil {
		s.b = s.b.Where(p)
	}
	return s
}

// Returning sets the RETURNING column list
func (s *DeleteStmt) Returning(cols ...string) *DeleteStmt {
	s.b = s.b.Suffix(returning(cols))
	return s
}

// Build renders the statement for d
func (s *DeleteStmt) Build(d Dialect) (string, []any) {
	return s.b.PlaceholderFormat(d.Placeholders()).MustSql()
}

func returning(cols []string) string {
	return "RETURNING " + strings.Join(cols, ", ")
}
