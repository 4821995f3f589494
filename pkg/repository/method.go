package repository

import (
	"context"

	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

// SampleMethodRepository writes survey_sample_method
type SampleMethodRepository struct {
	base
}

// NewSampleMethodRepository creates a method repository on db
func NewSampleMethodRepository(db storage.DB, d sqlb.Dialect) *SampleMethodRepository {
	return &SampleMethodRepository{base{db: db, dialect: d}}
}

// Insert creates a method under siteID. Periods are not written.
func (r *SampleMethodRepository) Insert(ctx context.Context, siteID int64, m models.SampleMethod) (models.SampleMethod, error) {
	query, args := sqlb.InsertInto("survey_sample_method",
		"survey_sample_site_id", "method_technique_id", "method_response_metric_id", "description").
		Values(siteID, nullable(m.MethodTechniqueID), m.MethodResponseMetricID, m.Description).
		Returning("survey_sample_method_id").
		Build(r.dialect)

	id, err := r.returningID(ctx, "insert sample method", query, args)
	if err != nil {
		return models.SampleMethod{}, err
	}
	m.SurveySampleMethodID = models.ID(id)
	m.SurveySampleSiteID = siteID
	return m, nil
}

// Update replaces every column of the method, scoped to siteID
func (r *SampleMethodRepository) Update(ctx context.Context, siteID int64, m models.SampleMethod) (models.SampleMethod, error) {
	query, args := sqlb.Update("survey_sample_method").
		Set("method_technique_id", nullable(m.MethodTechniqueID)).
		Set("method_response_metric_id", m.MethodResponseMetricID).
		Set("description", m.Description).
		Where(sqlb.And(
			sqlb.Eq("survey_sample_method_id", models.Value(m.SurveySampleMethodID)),
			sqlb.Eq("survey_sample_site_id", siteID),
		)).
		Returning("survey_sample_method_id").
		Build(r.dialect)

	if _, err := r.returningID(ctx, "update sample method", query, args); err != nil {
		return models.SampleMethod{}, err
	}
	m.SurveySampleSiteID = siteID
	return m, nil
}

// Delete removes methods of siteID. Their periods must already be gone.
func (r *SampleMethodRepository) Delete(ctx context.Context, siteID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	stmt := sqlb.DeleteFrom("survey_sample_method").
		Where(sqlb.And(sqlb.In("survey_sample_method_id", ids), sqlb.Eq("survey_sample_site_id", siteID))).
		Returning("survey_sample_method_id")
	return r.deleteIDs(ctx, "delete sample methods", stmt, len(ids))
}

// DeleteBySites removes every method of the given sites
func (r *SampleMethodRepository) DeleteBySites(ctx context.Context, siteIDs []int64) ([]int64, error) {
	if len(siteIDs) == 0 {
		return nil, nil
	}
	query, args := sqlb.DeleteFrom("survey_sample_method").
		Where(sqlb.In("survey_sample_site_id", siteIDs)).
		Returning("survey_sample_method_id").
		Build(r.dialect)
	return r.returningIDs(ctx, "delete sample methods of sites", query, args)
}
