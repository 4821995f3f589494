// Package aggregate reads nested records in one statement. Each child level
// of a Level tree becomes a CTE that groups its rows into a JSON array per
// parent key; the root LEFT JOINs those arrays so a parent without children
// still gets an empty array.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

// Level describes one table of a nested read
type Level struct {
	// Name is the JSON key under which the parent embeds this level
	Name string
	// Table is the source table with its alias, e.g. "survey_sample_method ssm"
	Table string
	// Key is this level's key column, qualified by alias
	Key string
	// ParentKey is the column referencing the parent's Key. Unused on the root.
	ParentKey string
	Joins     []string
	Fields    []sqlb.Pair
	OrderBy   []string
	// Scope narrows the rows a child CTE reads. Optional.
	Scope sqlb.Predicate
	// Nest groups this level with siblings of the same Nest under one object key
	Nest     string
	Children []*Level
}

// Build renders the statement returning one JSON column, record, per root row
// matching where
func Build(root *Level, d sqlb.Dialect, where sqlb.Predicate) (string, []any) {
	names := make(map[*Level]string)
	var children []*Level
	collect(root, "agg", &children, names)

	stmt := sqlb.Select(d.JSONObject(fields(root, d, names)...) + " AS record").From(root.Table)
	for _, child := range children {
		stmt.With(names[child], childStmt(child, d, names))
	}
	join(stmt, root, names)

	return stmt.Where(where).OrderBy(orderOf(root)...).Build(d)
}

// collect lists child levels depth-first, children before their parent, so
// every CTE is declared before the one that joins it
func collect(l *Level, prefix string, out *[]*Level, names map[*Level]string) {
	for _, child := range l.Children {
		name := prefix + "_" + child.Name
		collect(child, name, out, names)
		names[child] = name
		*out = append(*out, child)
	}
}

func childStmt(l *Level, d sqlb.Dialect, names map[*Level]string) *sqlb.SelectStmt {
	elem := d.JSONObject(fields(l, d, names)...)
	stmt := sqlb.Select(l.ParentKey+" AS parent_id", d.JSONArrayAgg(elem, orderOf(l)...)+" AS items").
		From(l.Table)
	join(stmt, l, names)
	return stmt.Where(l.Scope).GroupBy(l.ParentKey)
}

func join(stmt *sqlb.SelectStmt, l *Level, names map[*Level]string) {
	for _, j := range l.Joins {
		stmt.Join(j)
	}
	for _, child := range l.Children {
		name := names[child]
		stmt.Join("LEFT JOIN " + name + " ON " + name + ".parent_id = " + l.Key)
	}
}

func orderOf(l *Level) []string {
	if len(l.OrderBy) == 0 {
		return []string{l.Key}
	}
	return l.OrderBy
}

// fields returns l's own fields followed by its embedded child arrays
func fields(l *Level, d sqlb.Dialect, names map[*Level]string) []sqlb.Pair {
	out := append([]sqlb.Pair(nil), l.Fields...)

	nested := make(map[string][]sqlb.Pair)
	var nestOrder []string
	for _, child := range l.Children {
		arr := sqlb.P(child.Name, d.JSONArrayOrEmpty(names[child]+".items"))
		if child.Nest == "" {
			out = append(out, arr)
			continue
		}
		if _, ok := nested[child.Nest]; !ok {
			nestOrder = append(nestOrder, child.Nest)
		}
		nested[child.Nest] = append(nested[child.Nest], arr)
	}
	for _, key := range nestOrder {
		out = append(out, sqlb.P(key, d.JSONObject(nested[key]...)))
	}
	return out
}

// Fetch runs the nested read and decodes each record into a T. No matching
// rows yields an empty slice, not an error.
func Fetch[T any](ctx context.Context, db storage.DB, d sqlb.Dialect, root *Level, where sqlb.Predicate) ([]T, error) {
	query, args := Build(root, d, where)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", root.Name, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", root.Name, err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("aggregate %s: decode record: %w", root.Name, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", root.Name, err)
	}
	return out, nil
}
