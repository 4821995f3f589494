package repository

import (
	"context"

	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

// SamplePeriodRepository writes survey_sample_period
type SamplePeriodRepository struct {
	base
}

// NewSamplePeriodRepository creates a period repository on db
func NewSamplePeriodRepository(db storage.DB, d sqlb.Dialect) *SamplePeriodRepository {
	return &SamplePeriodRepository{base{db: db, dialect: d}}
}

// Insert creates a period under methodID
func (r *SamplePeriodRepository) Insert(ctx context.Context, methodID int64, p models.SamplePeriod) (models.SamplePeriod, error) {
	query, args := sqlb.InsertInto("survey_sample_period",
		"survey_sample_method_id", "start_date", "start_time", "end_date", "end_time").
		Values(methodID, p.StartDate, nullable(p.StartTime), p.EndDate, nullable(p.EndTime)).
		Returning("survey_sample_period_id").
		Build(r.dialect)

	id, err := r.returningID(ctx, "insert sample period", query, args)
	if err != nil {
		return models.SamplePeriod{}, err
	}
	p.SurveySamplePeriodID = models.ID(id)
	p.SurveySampleMethodID = methodID
	return p, nil
}

// Update replaces every column of the period, scoped to methodID
func (r *SamplePeriodRepository) Update(ctx context.Context, methodID int64, p models.SamplePeriod) (models.SamplePeriod, error) {
	query, args := sqlb.Update("survey_sample_period").
		Set("start_date", p.StartDate).
		Set("start_time", nullable(p.StartTime)).
		Set("end_date", p.EndDate).
		Set("end_time", nullable(p.EndTime)).
		Where(sqlb.And(
			sqlb.Eq("survey_sample_period_id", models.Value(p.SurveySamplePeriodID)),
			sqlb.Eq("survey_sample_method_id", methodID),
		)).
		Returning("survey_sample_period_id").
		Build(r.dialect)

	if _, err := r.returningID(ctx, "update sample period", query, args); err != nil {
		return models.SamplePeriod{}, err
	}
	p.SurveySampleMethodID = methodID
	return p, nil
}

// Delete removes periods by id
func (r *SamplePeriodRepository) Delete(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	stmt := sqlb.DeleteFrom("survey_sample_period").
		Where(sqlb.In("survey_sample_period_id", ids)).
		Returning("survey_sample_period_id")
	return r.deleteIDs(ctx, "delete sample periods", stmt, len(ids))
}

// DeleteByMethods removes every period of the given methods
func (r *SamplePeriodRepository) DeleteByMethods(ctx context.Context, methodIDs []int64) ([]int64, error) {
	if len(methodIDs) == 0 {
		return nil, nil
	}
	query, args := sqlb.DeleteFrom("survey_sample_period").
		Where(sqlb.In("survey_sample_method_id", methodIDs)).
		Returning("survey_sample_period_id").
		Build(r.dialect)
	return r.returningIDs(ctx, "delete sample periods of methods", query, args)
}

// DeleteBySites removes every period under the given sites
func (r *SamplePeriodRepository) DeleteBySites(ctx context.Context, siteIDs []int64) ([]int64, error) {
	if len(siteIDs) == 0 {
		return nil, nil
	}
	methods := sqlb.Select("survey_sample_method_id").
		From("survey_sample_method").
		Where(sqlb.In("survey_sample_site_id", siteIDs))
	query, args := sqlb.DeleteFrom("survey_sample_period").
		Where(sqlb.InSelect("survey_sample_method_id", methods)).
		Returning("survey_sample_period_id").
		Build(r.dialect)
	return r.returningIDs(ctx, "delete sample periods of sites", query, args)
}
