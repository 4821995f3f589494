// Package sqlb composes parameterized SQL statements from typed parts on top
// of squirrel, adding the dialect-specific JSON fragments the nested reads need.
//
// Statements never splice caller values into SQL text: every value comes back
// out of Build as a positional argument. Identifiers (table and column names)
// are always package-level constants of the caller.
package sqlb

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect renders the few SQL fragments that differ between backends
type Dialect interface {
	Name() string
	// Placeholders is the bind marker format applied when a statement is built
	Placeholders() sq.PlaceholderFormat
	// JSONObject builds a JSON object expression from key/expression pairs
	JSONObject(pairs ...Pair) string
	// JSONArrayAgg aggregates elem into a JSON array in the given order
	JSONArrayAgg(elem string, orderBy ...string) string
	// JSONArrayOrEmpty embeds an aggregated array, substituting [] for NULL
	JSONArrayOrEmpty(expr string) string
	// JSONValue embeds a column holding JSON text as a JSON value
	JSONValue(expr string) string
	// DefaultKey is the VALUES expression that makes the store assign a key
	DefaultKey() string
}

// Pair is one key of a JSON object expression
type Pair struct {
	Key  string
	Expr string
}

// P is shorthand for a Pair
func P(key, expr string) Pair {
	return Pair{Key: key, Expr: expr}
}

var (
	// SQLite targets SQLite 3.44+ (ordered aggregates, RETURNING, upsert)
	SQLite Dialect = sqliteDialect{}
	// Postgres targets PostgreSQL 12+
	Postgres Dialect = postgresDialect{}
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Placeholders() sq.PlaceholderFormat { return sq.Question }

func (sqliteDialect) JSONObject(pairs ...Pair) string {
	return "json_object(" + joinPairs(pairs) + ")"
}

func (sqliteDialect) JSONArrayAgg(elem string, orderBy ...string) string {
	return "json_group_array(" + elem + orderClause(orderBy) + ")"
}

// json() restores the JSON subtype lost when an aggregate crosses a CTE boundary.
func (sqliteDialect) JSONArrayOrEmpty(expr string) string {
	return "json(COALESCE(" + expr + ", '[]'))"
}

func (sqliteDialect) JSONValue(expr string) string { return "json(" + expr + ")" }

func (sqliteDialect) DefaultKey() string { return "NULL" }

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholders() sq.PlaceholderFormat { return sq.Dollar }

func (postgresDialect) JSONObject(pairs ...Pair) string {
	return "json_build_object(" + joinPairs(pairs) + ")"
}

func (postgresDialect) JSONArrayAgg(elem string, orderBy ...string) string {
	return "json_agg(" + elem + orderClause(orderBy) + ")"
}

func (postgresDialect) JSONArrayOrEmpty(expr string) string {
	return "COALESCE(" + expr + ", '[]'::json)"
}

func (postgresDialect) JSONValue(expr string) string { return "(" + expr + ")::json" }

func (postgresDialect) DefaultKey() string { return "DEFAULT" }

func joinPairs(pairs []Pair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, "'"+p.Key+"', "+p.Expr)
	}
	return strings.Join(parts, ", ")
}

func orderClause(orderBy []string) string {
	if len(orderBy) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(orderBy, ", ")
}
