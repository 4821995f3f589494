package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
	"github.com/ha1tch/fieldsync/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Store lifecycle
// =============================================================================

func TestNewStore_SQLite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "factory.db")

	store, err := storage.NewStore(ctx, "sqlite", map[string]interface{}{"db_path": dbPath})
	require.NoError(t, err)
	defer store.Close()

	info := store.Info()
	assert.Equal(t, "sqlite", info.Type)
	assert.Equal(t, storage.SchemaVersion, info.SchemaVersion)
	assert.True(t, info.ConcurrentStatements)
	assert.Equal(t, "sqlite", store.Dialect().Name())
}

func TestNewStore_Unknown(t *testing.T) {
	_, err := storage.NewStore(context.Background(), "mysql", nil)
	assert.ErrorIs(t, err, storage.ErrUnknownStore)
}

func TestListStores(t *testing.T) {
	assert.Equal(t, []string{"postgres", "sqlite"}, storage.ListStores())
}

func TestMigrate_Idempotent(t *testing.T) {
	store := storagetest.NewSQLite(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	var versions int
	require.NoError(t, store.Reader().QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&versions))
	assert.Equal(t, 1, versions)
}

func TestSQLite_ForeignKeysEnforced(t *testing.T) {
	store := storagetest.NewSQLite(t)
	ctx := context.Background()

	query, args := sqlb.InsertInto("survey_sample_site", "survey_id", "name").
		Values(int64(999), "orphan").
		Build(store.Dialect())
	_, err := store.Reader().ExecContext(ctx, query, args...)
	require.Error(t, err)

	var cv *storage.ConstraintViolation
	assert.ErrorAs(t, storage.ClassifyError("insert site", err), &cv)
}

// =============================================================================
// Transactions
// =============================================================================

func TestWithTransaction_Commit(t *testing.T) {
	store := storagetest.NewSQLite(t)
	fx := storagetest.NewFixture(t, store)
	ctx := context.Background()

	err := storage.WithTransaction(ctx, store, func(conn *storage.Connection) error {
		query, args := sqlb.InsertInto("survey", "name").Values("committed").Build(conn.Dialect())
		_, err := conn.ExecContext(ctx, query, args...)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 1, fx.Count("survey", sqlb.Eq("name", "committed")))
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	store := storagetest.NewSQLite(t)
	fx := storagetest.NewFixture(t, store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := storage.WithTransaction(ctx, store, func(conn *storage.Connection) error {
		query, args := sqlb.InsertInto("survey", "name").Values("discarded").Build(conn.Dialect())
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 0, fx.Count("survey", nil))
}

func TestConnection_FinishOnce(t *testing.T) {
	store := storagetest.NewSQLite(t)
	ctx := context.Background()

	conn, err := store.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, conn.Commit())
	assert.ErrorIs(t, conn.Commit(), sql.ErrTxDone)
	assert.ErrorIs(t, conn.Rollback(), sql.ErrTxDone)

	// Release after commit must not panic or roll anything back
	conn.Release()
	conn.Release()
}

func TestConnection_ReleaseRollsBack(t *testing.T) {
	store := storagetest.NewSQLite(t)
	fx := storagetest.NewFixture(t, store)
	ctx := context.Background()

	conn, err := store.Begin(ctx)
	require.NoError(t, err)

	query, args := sqlb.InsertInto("survey", "name").Values("released").Build(conn.Dialect())
	_, err = conn.ExecContext(ctx, query, args...)
	require.NoError(t, err)
	conn.Release()

	assert.Equal(t, 0, fx.Count("survey", nil))
}

func TestConcurrentTransactions(t *testing.T) {
	store := storagetest.NewSQLite(t)
	fx := storagetest.NewFixture(t, store)
	ctx := context.Background()

	count := 20
	var wg sync.WaitGroup
	errs := make(chan error, count)

	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := storage.WithTransaction(ctx, store, func(conn *storage.Connection) error {
				query, args := sqlb.InsertInto("survey", "name").Values(fmt.Sprintf("Survey%d", n)).Build(conn.Dialect())
				_, err := conn.ExecContext(ctx, query, args...)
				return err
			})
			if err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent transaction error: %v", err)
	}
	assert.Equal(t, count, fx.Count("survey", nil))
}

// =============================================================================
// Statement hooks
// =============================================================================

func TestOnStatement(t *testing.T) {
	store := storagetest.NewSQLite(t)
	rec := storagetest.Record(store)
	ctx := context.Background()

	err := storage.WithTransaction(ctx, store, func(conn *storage.Connection) error {
		query, args := sqlb.DeleteFrom("survey").Where(sqlb.In("survey_id", []int64{1, 2})).Build(conn.Dialect())
		_, err := conn.ExecContext(ctx, query, args...)
		return err
	})
	require.NoError(t, err)

	stmts := rec.Statements()
	require.Len(t, stmts, 1)
	assert.Equal(t, "DELETE survey", stmts[0].Verb())
	assert.Equal(t, []any{int64(1), int64(2)}, stmts[0].Args)
}

// =============================================================================
// Errors
// =============================================================================

func TestExpectRows(t *testing.T) {
	assert.NoError(t, storage.ExpectRows("update site", 1, 1))
	assert.NoError(t, storage.ExpectRows("upsert observations", 3, 4))

	err := storage.ExpectRows("update site", 1, 0)
	var pe *storage.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Expected)
	assert.Equal(t, 0, pe.Actual)
	assert.Equal(t, "update site: expected 1 affected rows, got 0", err.Error())
}

func TestClassifyError(t *testing.T) {
	assert.NoError(t, storage.ClassifyError("op", nil))

	plain := storage.ClassifyError("select sites", errors.New("disk I/O error"))
	assert.EqualError(t, plain, "select sites: disk I/O error")

	var cv *storage.ConstraintViolation
	assert.False(t, errors.As(plain, &cv))
}

func TestValidationError(t *testing.T) {
	err := storage.NewValidationError("sample_period", "period %d does not belong to method %d", 7, 3)
	assert.EqualError(t, err, "invalid sample_period: period 7 does not belong to method 3")
}

// =============================================================================
// Integrity
// =============================================================================

func TestVerifyIntegrity(t *testing.T) {
	store := storagetest.NewSQLite(t)
	fx := storagetest.NewFixture(t, store)
	ctx := context.Background()

	survey := fx.Survey("A")
	other := fx.Survey("B")
	site := fx.Site(survey, "Site 1")
	fx.SampleBlock(site, fx.Block(survey, "Block 1"))

	problems, err := storage.VerifyIntegrity(ctx, store.Reader())
	require.NoError(t, err)
	assert.Empty(t, problems)

	fx.SampleBlock(site, fx.Block(other, "Foreign block"))

	problems, err = storage.VerifyIntegrity(ctx, store.Reader())
	require.NoError(t, err)
	assert.Equal(t, []storage.IntegrityProblem{{Check: "sample_block_survey", Count: 1}}, problems)
}

// =============================================================================
// PostgreSQL
// =============================================================================

func TestPostgres_Transaction(t *testing.T) {
	store := storagetest.NewPostgres(t)
	fx := storagetest.NewFixture(t, store)
	ctx := context.Background()

	assert.Equal(t, "postgres", store.Info().Type)
	assert.False(t, store.Info().ConcurrentStatements)

	err := storage.WithTransaction(ctx, store, func(conn *storage.Connection) error {
		query, args := sqlb.InsertInto("survey", "name").Values("pg").Build(conn.Dialect())
		_, err := conn.ExecContext(ctx, query, args...)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fx.Count("survey", nil))

	query, args := sqlb.InsertInto("survey_sample_site", "survey_id", "name").
		Values(int64(999), "orphan").
		Build(store.Dialect())
	_, err = store.Reader().ExecContext(ctx, query, args...)
	var cv *storage.ConstraintViolation
	assert.ErrorAs(t, storage.ClassifyError("insert site", err), &cv)
}
