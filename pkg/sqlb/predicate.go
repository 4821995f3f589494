package sqlb

import sq "github.com/Masterminds/squirrel"

// Predicate is a WHERE-clause fragment that binds its own arguments. Nested
// fragments render with "?" markers; the outermost statement numbers them.
type Predicate = sq.Sqlizer

// Eq matches col = v. v must be a scalar; use In for lists.
func Eq(col string, v any) Predicate {
	return sq.Eq{col: v}
}

// In matches col against a value list. An empty list matches nothing.
func In[T any](col string, vals []T) Predicate {
	return sq.Eq{col: vals}
}

// NotIn excludes a value list. An empty list matches everything.
func NotIn[T any](col string, vals []T) Predicate {
	return sq.NotEq{col: vals}
}

// And joins predicates; nil entries are skipped. No predicates matches
// everything.
func And(preds ...Predicate) Predicate {
	kept := make(sq.And, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return kept
}

// InSelect matches col against the rows of a sub-select
func InSelect(col string, sel *SelectStmt) Predicate {
	return sq.Expr(col+" IN (?)", sel)
}
