package repository_test

import (
	"context"
	"testing"

	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/repository"
	"github.com/ha1tch/fieldsync/pkg/storage"
	"github.com/ha1tch/fieldsync/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepositoryTest(t *testing.T) (*storage.SQLiteStore, *storagetest.Fixture) {
	t.Helper()

	store := storagetest.NewSQLite(t)
	return store, storagetest.NewFixture(t, store)
}

// begin opens the transaction under test. Seed fixtures first: the
// transaction holds the write lock until the test ends.
func begin(t *testing.T, store storage.Store) *storage.Connection {
	t.Helper()

	conn, err := store.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(conn.Release)
	return conn
}

func strPtr(s string) *string { return &s }

// =============================================================================
// Sites, methods, periods
// =============================================================================

func TestSampleSiteRepository_InsertUpdateDelete(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	ctx := context.Background()
	survey := fx.Survey("S")
	conn := begin(t, store)
	repo := repository.NewSampleSiteRepository(conn, store.Dialect())

	site, err := repo.Insert(ctx, survey, models.SampleSite{
		Name:    "Ridge",
		Geojson: []byte(`{"type":"Point","coordinates":[0,0]}`),
	})
	require.NoError(t, err)
	require.NotNil(t, site.SurveySampleSiteID)
	assert.Equal(t, survey, site.SurveyID)

	site.Name = "Ridge North"
	_, err = repo.Update(ctx, survey, site)
	require.NoError(t, err)

	var name string
	require.NoError(t, conn.QueryRowContext(ctx,
		"SELECT name FROM survey_sample_site WHERE survey_sample_site_id = ?", *site.SurveySampleSiteID).Scan(&name))
	assert.Equal(t, "Ridge North", name)

	deleted, err := repo.Delete(ctx, survey, []int64{*site.SurveySampleSiteID})
	require.NoError(t, err)
	assert.Equal(t, []int64{*site.SurveySampleSiteID}, deleted)
}

func TestSampleSiteRepository_UpdateOtherSurvey(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	ctx := context.Background()
	survey := fx.Survey("S")
	other := fx.Survey("Other")
	site := fx.Site(survey, "Ridge")
	conn := begin(t, store)
	repo := repository.NewSampleSiteRepository(conn, store.Dialect())

	_, err := repo.Update(ctx, other, models.SampleSite{SurveySampleSiteID: models.ID(site), Name: "Stolen"})

	var pe *storage.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "update sample site", pe.Op)
	assert.Equal(t, 1, pe.Expected)
	assert.Equal(t, 0, pe.Actual)
}

func TestSampleMethodRepository(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	ctx := context.Background()
	survey := fx.Survey("S")
	site := fx.Site(survey, "Ridge")
	technique := fx.Technique(survey, "Trap")
	other := fx.Site(survey, "Valley")
	conn := begin(t, store)
	repo := repository.NewSampleMethodRepository(conn, store.Dialect())

	m, err := repo.Insert(ctx, site, models.SampleMethod{MethodTechniqueID: models.ID(technique), MethodResponseMetricID: 1})
	require.NoError(t, err)
	assert.Equal(t, site, m.SurveySampleSiteID)

	m.MethodTechniqueID = nil
	m.Description = "no technique"
	_, err = repo.Update(ctx, site, m)
	require.NoError(t, err)

	var technique2 *int64
	require.NoError(t, conn.QueryRowContext(ctx,
		"SELECT method_technique_id FROM survey_sample_method WHERE survey_sample_method_id = ?",
		*m.SurveySampleMethodID).Scan(&technique2))
	assert.Nil(t, technique2)

	// a method is only reachable through its own site
	_, err = repo.Update(ctx, other, m)
	var pe *storage.PersistenceError
	assert.ErrorAs(t, err, &pe)

	deleted, err := repo.DeleteBySites(ctx, []int64{site})
	require.NoError(t, err)
	assert.Equal(t, []int64{*m.SurveySampleMethodID}, deleted)
}

func TestSamplePeriodRepository(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	ctx := context.Background()
	survey := fx.Survey("S")
	site := fx.Site(survey, "Ridge")
	method := fx.Method(site, fx.Technique(survey, "Trap"), 1)
	second := fx.Period(method, "2024-02-01", "2024-02-02")
	conn := begin(t, store)
	repo := repository.NewSamplePeriodRepository(conn, store.Dialect())

	p, err := repo.Insert(ctx, method, models.SamplePeriod{
		StartDate: "2024-01-01", StartTime: strPtr("08:00:00"), EndDate: "2024-01-02",
	})
	require.NoError(t, err)
	require.NotNil(t, p.SurveySamplePeriodID)

	p.EndTime = strPtr("17:30:00")
	_, err = repo.Update(ctx, method, p)
	require.NoError(t, err)

	var endTime *string
	require.NoError(t, conn.QueryRowContext(ctx,
		"SELECT end_time FROM survey_sample_period WHERE survey_sample_period_id = ?",
		*p.SurveySamplePeriodID).Scan(&endTime))
	require.NotNil(t, endTime)
	assert.Equal(t, "17:30:00", *endTime)

	deleted, err := repo.DeleteBySites(ctx, []int64{site})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{*p.SurveySamplePeriodID, second}, deleted)
}

func TestDelete_StaleID(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	ctx := context.Background()
	survey := fx.Survey("S")
	method := fx.Method(fx.Site(survey, "Ridge"), fx.Technique(survey, "Trap"), 1)
	period := fx.Period(method, "2024-01-01", "2024-01-02")
	conn := begin(t, store)
	repo := repository.NewSamplePeriodRepository(conn, store.Dialect())

	_, err := repo.Delete(ctx, []int64{period, 424242})

	var pe *storage.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Expected)
	assert.Equal(t, 1, pe.Actual)
}

func TestDelete_EmptySetIssuesNoStatement(t *testing.T) {
	store, _ := setupRepositoryTest(t)
	conn := begin(t, store)
	rec := storagetest.Record(store)
	ctx := context.Background()
	d := store.Dialect()

	deletes := []func() ([]int64, error){
		func() ([]int64, error) { return repository.NewSampleSiteRepository(conn, d).Delete(ctx, 1, nil) },
		func() ([]int64, error) { return repository.NewSampleMethodRepository(conn, d).Delete(ctx, 1, []int64{}) },
		func() ([]int64, error) { return repository.NewSampleMethodRepository(conn, d).DeleteBySites(ctx, nil) },
		func() ([]int64, error) { return repository.NewSamplePeriodRepository(conn, d).Delete(ctx, nil) },
		func() ([]int64, error) { return repository.NewSamplePeriodRepository(conn, d).DeleteByMethods(ctx, nil) },
		func() ([]int64, error) { return repository.NewSamplePeriodRepository(conn, d).DeleteBySites(ctx, nil) },
		func() ([]int64, error) { return repository.NewSampleBlockRepository(conn, d).Delete(ctx, 1, nil) },
		func() ([]int64, error) { return repository.NewSampleBlockRepository(conn, d).DeleteByDefinitions(ctx, nil) },
		func() ([]int64, error) { return repository.NewSampleBlockRepository(conn, d).DeleteDefinitions(ctx, 1, nil) },
		func() ([]int64, error) { return repository.NewSampleStratumRepository(conn, d).Delete(ctx, 1, nil) },
		func() ([]int64, error) { return repository.NewSampleStratumRepository(conn, d).DeleteBySites(ctx, nil) },
		func() ([]int64, error) { return repository.NewSampleStratumRepository(conn, d).DeleteDefinitions(ctx, 1, nil) },
		func() ([]int64, error) {
			return repository.NewTechniqueAttributeRepository(conn, d).DeleteQualitative(ctx, 1, nil)
		},
		func() ([]int64, error) {
			return repository.NewTechniqueAttributeRepository(conn, d).DeleteQuantitative(ctx, 1, nil)
		},
	}

	for _, del := range deletes {
		ids, err := del()
		assert.NoError(t, err)
		assert.Empty(t, ids)
	}
	assert.Empty(t, rec.Statements())
}

// =============================================================================
// Memberships and definitions
// =============================================================================

func TestSampleBlockRepository(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	ctx := context.Background()
	survey := fx.Survey("S")
	site := fx.Site(survey, "Ridge")
	conn := begin(t, store)
	repo := repository.NewSampleBlockRepository(conn, store.Dialect())

	block, err := repo.InsertDefinition(ctx, survey, "North", "north side")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateDefinition(ctx, survey, block, "North", "north slope"))

	membership, err := repo.Insert(ctx, site, block)
	require.NoError(t, err)
	assert.NotZero(t, membership)

	// one membership per site and block
	_, err = repo.Insert(ctx, site, block)
	var cv *storage.ConstraintViolation
	assert.ErrorAs(t, err, &cv)
}

func TestSampleBlockRepository_DefinitionCascadeOrder(t *testing.T) {
	store := storagetest.NewSQLite(t)
	fx := storagetest.NewFixture(t, store)
	ctx := context.Background()
	survey := fx.Survey("S")
	block := fx.Block(survey, "North")
	fx.SampleBlock(fx.Site(survey, "A"), block)
	fx.SampleBlock(fx.Site(survey, "B"), block)

	t.Run("definition first violates foreign key", func(t *testing.T) {
		conn, err := store.Begin(ctx)
		require.NoError(t, err)
		defer conn.Release()

		_, err = repository.NewSampleBlockRepository(conn, store.Dialect()).DeleteDefinitions(ctx, survey, []int64{block})
		var cv *storage.ConstraintViolation
		assert.ErrorAs(t, err, &cv)
	})

	t.Run("memberships first", func(t *testing.T) {
		conn, err := store.Begin(ctx)
		require.NoError(t, err)
		defer conn.Release()
		repo := repository.NewSampleBlockRepository(conn, store.Dialect())

		memberships, err := repo.DeleteByDefinitions(ctx, []int64{block})
		require.NoError(t, err)
		assert.Len(t, memberships, 2)

		defs, err := repo.DeleteDefinitions(ctx, survey, []int64{block})
		require.NoError(t, err)
		assert.Equal(t, []int64{block}, defs)
	})
}

func TestSampleStratumRepository(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	ctx := context.Background()
	survey := fx.Survey("S")
	site := fx.Site(survey, "Ridge")
	conn := begin(t, store)
	repo := repository.NewSampleStratumRepository(conn, store.Dialect())

	stratum, err := repo.InsertDefinition(ctx, survey, "Lowland", "")
	require.NoError(t, err)
	membership, err := repo.Insert(ctx, site, stratum)
	require.NoError(t, err)

	// a membership is only removable through its own site
	_, err = repo.Delete(ctx, site+1000, []int64{membership})
	var pe *storage.PersistenceError
	assert.ErrorAs(t, err, &pe)

	deleted, err := repo.Delete(ctx, site, []int64{membership})
	require.NoError(t, err)
	assert.Equal(t, []int64{membership}, deleted)

	err = repo.UpdateDefinition(ctx, survey+1000, stratum, "x", "")
	assert.ErrorAs(t, err, &pe)
}

// =============================================================================
// Technique attributes
// =============================================================================

func TestTechniqueAttributeRepository(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	ctx := context.Background()
	survey := fx.Survey("S")
	technique := fx.Technique(survey, "Trap")
	conn := begin(t, store)
	repo := repository.NewTechniqueAttributeRepository(conn, store.Dialect())

	qual, err := repo.InsertQualitative(ctx, technique, models.QualitativeAttribute{
		MethodLookupAttributeQualitativeID: 1, MethodLookupAttributeQualitativeOptionID: 2,
	})
	require.NoError(t, err)
	qual.MethodLookupAttributeQualitativeOptionID = 3
	_, err = repo.UpdateQualitative(ctx, technique, qual)
	require.NoError(t, err)

	quant, err := repo.InsertQuantitative(ctx, technique, models.QuantitativeAttribute{
		MethodLookupAttributeQuantitativeID: 5, Value: 1.5,
	})
	require.NoError(t, err)
	quant.Value = 4.25
	_, err = repo.UpdateQuantitative(ctx, technique, quant)
	require.NoError(t, err)

	got, err := repository.NewTechniqueRepository(conn, store.Dialect()).Get(ctx, survey, technique)
	require.NoError(t, err)
	require.Len(t, got.Attributes.Qualitative, 1)
	assert.Equal(t, int64(3), got.Attributes.Qualitative[0].MethodLookupAttributeQualitativeOptionID)
	require.Len(t, got.Attributes.Quantitative, 1)
	assert.Equal(t, 4.25, got.Attributes.Quantitative[0].Value)

	_, err = repo.DeleteQualitative(ctx, technique, []int64{*qual.MethodTechniqueAttributeQualitativeID})
	require.NoError(t, err)
	_, err = repo.DeleteQuantitative(ctx, technique, []int64{*quant.MethodTechniqueAttributeQuantitativeID})
	require.NoError(t, err)
}

func TestTechniqueRepository_NotFound(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	survey := fx.Survey("S")

	conn := begin(t, store)
	_, err := repository.NewTechniqueRepository(conn, store.Dialect()).Get(context.Background(), survey, 77)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// =============================================================================
// Observations
// =============================================================================

func observation(id *int64, count int) models.Observation {
	return models.Observation{SurveyObservationID: id, Count: count, ObservationDate: "2024-05-01"}
}

func TestObservationRepository_UpsertBatches(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	ctx := context.Background()
	survey := fx.Survey("S")
	site := fx.Site(survey, "Ridge")
	existing := fx.Observation(survey, site, 1)
	rec := storagetest.Record(store)

	conn := begin(t, store)
	repo := repository.NewObservationRepository(conn, store.Dialect(), 2)
	rows := []models.Observation{
		observation(models.ID(existing), 10),
		observation(nil, 1),
		observation(nil, 2),
		observation(nil, 3),
		observation(nil, 4),
	}

	ids, err := repo.Upsert(ctx, survey, rows)
	require.NoError(t, err)
	assert.Len(t, ids, 5)
	assert.Contains(t, ids, existing)
	assert.Equal(t, 3, rec.Count("INSERT observation"), "5 rows in batches of 2")

	var count int
	require.NoError(t, conn.QueryRowContext(ctx,
		"SELECT count FROM observation WHERE survey_observation_id = ?", existing).Scan(&count))
	assert.Equal(t, 10, count)
}

func TestObservationRepository_SurveyGuard(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	ctx := context.Background()
	survey := fx.Survey("S")
	other := fx.Survey("Other")
	foreign := fx.Observation(other, fx.Site(other, "X"), 1)

	conn := begin(t, store)
	repo := repository.NewObservationRepository(conn, store.Dialect(), 0)
	_, err := repo.Upsert(ctx, survey, []models.Observation{observation(models.ID(foreign), 99)})

	var pe *storage.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Expected)
	assert.Equal(t, 0, pe.Actual)
}

func TestObservationRepository_DeleteNotIn(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	ctx := context.Background()
	survey := fx.Survey("S")
	other := fx.Survey("Other")
	site := fx.Site(survey, "Ridge")
	keep := fx.Observation(survey, site, 1)
	fx.Observation(survey, site, 2)
	fx.Observation(survey, site, 3)
	fx.Observation(other, fx.Site(other, "X"), 4)

	conn := begin(t, store)
	repo := repository.NewObservationRepository(conn, store.Dialect(), 0)

	n, err := repo.DeleteNotIn(ctx, survey, []int64{keep})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.DeleteNotIn(ctx, survey, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var remaining int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM observation").Scan(&remaining))
	assert.Equal(t, 1, remaining, "other survey untouched")
}

// =============================================================================
// Survey scope
// =============================================================================

func TestSurveyRepository_Scope(t *testing.T) {
	store, fx := setupRepositoryTest(t)
	survey := fx.Survey("S")
	other := fx.Survey("Other")
	site := fx.Site(survey, "Ridge")
	method := fx.Method(site, fx.Technique(survey, "Trap"), 1)
	period := fx.Period(method, "2024-01-01", "2024-01-01")
	block := fx.Block(survey, "North")
	stratum := fx.Stratum(survey, "Low")
	obs := fx.Observation(survey, site, 1)
	fx.Site(other, "Foreign")

	conn := begin(t, store)
	scope, err := repository.NewSurveyRepository(conn, store.Dialect()).Scope(context.Background(), survey)
	require.NoError(t, err)

	assert.Equal(t, map[int64]bool{site: true}, scope.Sites)
	assert.Equal(t, map[int64]int64{method: site}, scope.Methods)
	assert.Equal(t, map[int64]int64{period: method}, scope.Periods)
	assert.True(t, scope.Blocks[block])
	assert.True(t, scope.Stratums[stratum])
	assert.True(t, scope.Observations[obs])
	assert.Len(t, scope.Techniques, 1)
}
