// Package storagetest provides stores, fixtures and statement recording for
// tests of packages built on storage.
package storagetest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
	"github.com/stretchr/testify/require"
)

// PostgresDSNEnv names the variable that enables tests against PostgreSQL
const PostgresDSNEnv = "FIELDSYNC_POSTGRES_DSN"

// NewSQLite opens a migrated SQLite store in a temporary directory. It is
// closed when the test ends.
func NewSQLite(t testing.TB) *storage.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "fieldsync-test.db")
	store, err := storage.NewSQLiteStore(dbPath, storage.DefaultSQLiteConfig(dbPath))
	require.NoError(t, err)

	t.Cleanup(func() { store.Close() })
	return store
}

// NewPostgres opens a migrated PostgreSQL store, or skips the test when
// FIELDSYNC_POSTGRES_DSN is unset. Tables are emptied before use.
func NewPostgres(t testing.TB) *storage.PostgresStore {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	ctx := context.Background()
	store, err := storage.NewPostgresStore(ctx, storage.PostgresConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.Reader().ExecContext(ctx, `TRUNCATE observation, survey_sample_block,
		survey_sample_stratum, survey_sample_period, survey_sample_method, survey_sample_site,
		survey_block, survey_stratum, method_technique_attribute_qualitative,
		method_technique_attribute_quantitative, method_technique, survey RESTART IDENTITY`)
	require.NoError(t, err)
	return store
}

// Statement is one recorded statement
type Statement struct {
	Query string
	Args  []any
}

// Verb returns the leading keyword and table, e.g. "DELETE survey_sample_period"
func (s Statement) Verb() string {
	fields := strings.Fields(s.Query)
	if len(fields) == 0 {
		return ""
	}
	switch strings.ToUpper(fields[0]) {
	case "DELETE", "INSERT":
		if len(fields) >= 3 {
			return strings.ToUpper(fields[0]) + " " + fields[2]
		}
	case "UPDATE":
		if len(fields) >= 2 {
			return "UPDATE " + fields[1]
		}
	}
	return strings.ToUpper(fields[0])
}

// Recorder collects the statements a store runs
type Recorder struct {
	mu    sync.Mutex
	stmts []Statement
}

// Record attaches a new recorder to store
func Record(store storage.Store) *Recorder {
	r := &Recorder{}
	store.OnStatement(r.hook)
	return r
}

func (r *Recorder) hook(_ context.Context, query string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, Statement{Query: query, Args: append([]any(nil), args...)})
}

// Statements returns a copy of everything recorded so far
func (r *Recorder) Statements() []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Statement(nil), r.stmts...)
}

// Writes returns the verbs of recorded INSERT, UPDATE and DELETE statements
func (r *Recorder) Writes() []string {
	var verbs []string
	for _, s := range r.Statements() {
		v := s.Verb()
		if strings.HasPrefix(v, "INSERT") || strings.HasPrefix(v, "UPDATE") || strings.HasPrefix(v, "DELETE") {
			verbs = append(verbs, v)
		}
	}
	return verbs
}

// Count returns how many recorded statements have the given verb
func (r *Recorder) Count(verb string) int {
	n := 0
	for _, s := range r.Statements() {
		if s.Verb() == verb {
			n++
		}
	}
	return n
}

// Reset discards recorded statements
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = nil
}

// Fixture seeds rows directly, bypassing the reconciler
type Fixture struct {
	t     testing.TB
	store storage.Store
}

// NewFixture returns a fixture writing to store
func NewFixture(t testing.TB, store storage.Store) *Fixture {
	return &Fixture{t: t, store: store}
}

func (f *Fixture) insert(table, key string, cols []string, vals ...any) int64 {
	f.t.Helper()

	query, args := sqlb.InsertInto(table, cols...).Values(vals...).Returning(key).Build(f.store.Dialect())
	var id int64
	require.NoError(f.t, f.store.Reader().QueryRowContext(context.Background(), query, args...).Scan(&id))
	return id
}

// Survey inserts a survey
func (f *Fixture) Survey(name string) int64 {
	f.t.Helper()
	return f.insert("survey", "survey_id", []string{"name"}, name)
}

// Technique inserts a method technique
func (f *Fixture) Technique(surveyID int64, name string) int64 {
	f.t.Helper()
	return f.insert("method_technique", "method_technique_id",
		[]string{"survey_id", "name", "description"}, surveyID, name, "")
}

// QualitativeAttribute attaches a qualitative attribute to a technique
func (f *Fixture) QualitativeAttribute(techniqueID, lookupID, optionID int64) int64 {
	f.t.Helper()
	return f.insert("method_technique_attribute_qualitative", "method_technique_attribute_qualitative_id",
		[]string{"method_technique_id", "method_lookup_attribute_qualitative_id", "method_lookup_attribute_qualitative_option_id"},
		techniqueID, lookupID, optionID)
}

// QuantitativeAttribute attaches a quantitative attribute to a technique
func (f *Fixture) QuantitativeAttribute(techniqueID, lookupID int64, value float64) int64 {
	f.t.Helper()
	return f.insert("method_technique_attribute_quantitative", "method_technique_attribute_quantitative_id",
		[]string{"method_technique_id", "method_lookup_attribute_quantitative_id", "value"},
		techniqueID, lookupID, value)
}

// Block inserts a block definition
func (f *Fixture) Block(surveyID int64, name string) int64 {
	f.t.Helper()
	return f.insert("survey_block", "survey_block_id",
		[]string{"survey_id", "name", "description"}, surveyID, name, name+" description")
}

// Stratum inserts a stratum definition
func (f *Fixture) Stratum(surveyID int64, name string) int64 {
	f.t.Helper()
	return f.insert("survey_stratum", "survey_stratum_id",
		[]string{"survey_id", "name", "description"}, surveyID, name, name+" description")
}

// Site inserts a sample site without geometry
func (f *Fixture) Site(surveyID int64, name string) int64 {
	f.t.Helper()
	return f.insert("survey_sample_site", "survey_sample_site_id",
		[]string{"survey_id", "name", "description"}, surveyID, name, "")
}

// Method inserts a sample method under a site
func (f *Fixture) Method(siteID, techniqueID, metricID int64) int64 {
	f.t.Helper()
	return f.insert("survey_sample_method", "survey_sample_method_id",
		[]string{"survey_sample_site_id", "method_technique_id", "method_response_metric_id", "description"},
		siteID, techniqueID, metricID, "")
}

// Period inserts a sample period under a method
func (f *Fixture) Period(methodID int64, startDate, endDate string) int64 {
	f.t.Helper()
	return f.insert("survey_sample_period", "survey_sample_period_id",
		[]string{"survey_sample_method_id", "start_date", "end_date"}, methodID, startDate, endDate)
}

// SampleBlock links a site to a block definition
func (f *Fixture) SampleBlock(siteID, blockID int64) int64 {
	f.t.Helper()
	return f.insert("survey_sample_block", "survey_sample_block_id",
		[]string{"survey_sample_site_id", "survey_block_id"}, siteID, blockID)
}

// SampleStratum links a site to a stratum definition
func (f *Fixture) SampleStratum(siteID, stratumID int64) int64 {
	f.t.Helper()
	return f.insert("survey_sample_stratum", "survey_sample_stratum_id",
		[]string{"survey_sample_site_id", "survey_stratum_id"}, siteID, stratumID)
}

// Observation inserts an observation linked to a site only
func (f *Fixture) Observation(surveyID, siteID int64, count int) int64 {
	f.t.Helper()
	return f.insert("observation", "survey_observation_id",
		[]string{"survey_id", "survey_sample_site_id", "count", "observation_date"},
		surveyID, siteID, count, "2024-01-01")
}

// Count returns the number of rows in table matching where
func (f *Fixture) Count(table string, where sqlb.Predicate) int {
	f.t.Helper()

	query, args := sqlb.Select("COUNT(*)").From(table).Where(where).Build(f.store.Dialect())
	var n int
	require.NoError(f.t, f.store.Reader().QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}
