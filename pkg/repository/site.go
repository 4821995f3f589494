package repository

import (
	"context"
	"encoding/json"

	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

// SampleSiteRepository writes survey_sample_site
type SampleSiteRepository struct {
	base
}

// NewSampleSiteRepository creates a site repository on db
func NewSampleSiteRepository(db storage.DB, d sqlb.Dialect) *SampleSiteRepository {
	return &SampleSiteRepository{base{db: db, dialect: d}}
}

// geojsonArg binds absent or JSON-null geometry as SQL NULL
func geojsonArg(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return string(raw)
}

// Insert creates a site row under surveyID. Children are not written.
func (r *SampleSiteRepository) Insert(ctx context.Context, surveyID int64, site models.SampleSite) (models.SampleSite, error) {
	query, args := sqlb.InsertInto("survey_sample_site", "survey_id", "name", "description", "geojson").
		Values(surveyID, site.Name, site.Description, geojsonArg(site.Geojson)).
		Returning("survey_sample_site_id").
		Build(r.dialect)

	id, err := r.returningID(ctx, "insert sample site", query, args)
	if err != nil {
		return models.SampleSite{}, err
	}
	site.SurveySampleSiteID = models.ID(id)
	site.SurveyID = surveyID
	return site, nil
}

// Update replaces the site's own columns
func (r *SampleSiteRepository) Update(ctx context.Context, surveyID int64, site models.SampleSite) (models.SampleSite, error) {
	query, args := sqlb.Update("survey_sample_site").
		Set("name", site.Name).
		Set("description", site.Description).
		Set("geojson", geojsonArg(site.Geojson)).
		Where(sqlb.And(
			sqlb.Eq("survey_sample_site_id", models.Value(site.SurveySampleSiteID)),
			sqlb.Eq("survey_id", surveyID),
		)).
		Returning("survey_sample_site_id").
		Build(r.dialect)

	if _, err := r.returningID(ctx, "update sample site", query, args); err != nil {
		return models.SampleSite{}, err
	}
	site.SurveyID = surveyID
	return site, nil
}

// Delete removes sites of surveyID. Their children must already be gone.
func (r *SampleSiteRepository) Delete(ctx context.Context, surveyID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	stmt := sqlb.DeleteFrom("survey_sample_site").
		Where(sqlb.And(sqlb.In("survey_sample_site_id", ids), sqlb.Eq("survey_id", surveyID))).
		Returning("survey_sample_site_id")
	return r.deleteIDs(ctx, "delete sample sites", stmt, len(ids))
}
