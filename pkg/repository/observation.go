package repository

import (
	"context"
	"fmt"

	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

// DefaultObservationBatch is the number of rows per upsert statement when
// none is configured
const DefaultObservationBatch = 500

var (
	observationColumns = []string{
		"survey_observation_id", "survey_id",
		"survey_sample_site_id", "survey_sample_method_id", "survey_sample_period_id",
		"itis_tsn", "count", "latitude", "longitude", "observation_date", "observation_time",
	}
	// every column but the key and the owning survey
	observationUpdateColumns = observationColumns[2:]
)

// ObservationRepository bulk-writes observation rows
type ObservationRepository struct {
	base
	batch int
}

// NewObservationRepository creates an observation repository on db. batch
// bounds the rows per upsert statement; <= 0 selects DefaultObservationBatch.
func NewObservationRepository(db storage.DB, d sqlb.Dialect, batch int) *ObservationRepository {
	if batch <= 0 {
		batch = DefaultObservationBatch
	}
	return &ObservationRepository{base: base{db: db, dialect: d}, batch: batch}
}

// Upsert inserts rows without an id and updates rows with one, in multi-row
// statements of at most the configured batch size. A keyed row whose stored
// survey differs from surveyID is neither updated nor inserted, which shows
// up as a short RETURNING count and fails with PersistenceError. It returns
// the ids of all written rows.
func (r *ObservationRepository) Upsert(ctx context.Context, surveyID int64, rows []models.Observation) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	for start := 0; start < len(rows); start += r.batch {
		end := start + r.batch
		if end > len(rows) {
			end = len(rows)
		}

		written, err := r.upsertChunk(ctx, surveyID, rows[start:end])
		if err != nil {
			return nil, err
		}
		ids = append(ids, written...)
	}
	return ids, nil
}

func (r *ObservationRepository) upsertChunk(ctx context.Context, surveyID int64, rows []models.Observation) ([]int64, error) {
	stmt := sqlb.InsertInto("observation", observationColumns...)
	for _, o := range rows {
		var key any = sqlb.Default
		if o.SurveyObservationID != nil {
			key = *o.SurveyObservationID
		}
		stmt.Values(key, surveyID,
			nullable(o.SurveySampleSiteID), nullable(o.SurveySampleMethodID), nullable(o.SurveySamplePeriodID),
			nullable(o.ItisTSN), o.Count, nullable(o.Latitude), nullable(o.Longitude),
			o.ObservationDate, nullable(o.ObservationTime))
	}

	query, args := stmt.
		OnConflictUpdate("survey_observation_id", observationUpdateColumns, "observation.survey_id = excluded.survey_id").
		Returning("survey_observation_id").
		Build(r.dialect)

	op := fmt.Sprintf("upsert %d observations", len(rows))
	ids, err := r.returningIDs(ctx, op, query, args)
	if err != nil {
		return nil, err
	}
	if err := storage.ExpectRows(op, len(rows), len(ids)); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteNotIn removes every observation of surveyID whose id is not retained
// and returns how many were removed. An empty retained set removes all of the
// survey's observations.
func (r *ObservationRepository) DeleteNotIn(ctx context.Context, surveyID int64, retained []int64) (int64, error) {
	query, args := sqlb.DeleteFrom("observation").
		Where(sqlb.And(sqlb.Eq("survey_id", surveyID), sqlb.NotIn("survey_observation_id", retained))).
		Build(r.dialect)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storage.ClassifyError("delete observations not retained", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete observations not retained: %w", err)
	}
	return n, nil
}
