package repository

import (
	"context"
	"fmt"

	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

// SurveyRepository reads survey-wide identifier sets
type SurveyRepository struct {
	base
}

// NewSurveyRepository creates a survey repository on db
func NewSurveyRepository(db storage.DB, d sqlb.Dialect) *SurveyRepository {
	return &SurveyRepository{base{db: db, dialect: d}}
}

// Scope loads every identifier owned by surveyID
func (r *SurveyRepository) Scope(ctx context.Context, surveyID int64) (*models.SurveyScope, error) {
	scope := models.NewSurveyScope(surveyID)

	sites := sqlb.Select("survey_sample_site_id").From("survey_sample_site").Where(sqlb.Eq("survey_id", surveyID))
	methods := sqlb.Select("m.survey_sample_method_id").
		From("survey_sample_method m").
		Join("JOIN survey_sample_site s ON s.survey_sample_site_id = m.survey_sample_site_id").
		Where(sqlb.Eq("s.survey_id", surveyID))

	loads := []struct {
		stmt *sqlb.SelectStmt
		add  func(id, parent int64)
	}{
		{
			sqlb.Select("survey_sample_site_id", "survey_id").From("survey_sample_site").Where(sqlb.Eq("survey_id", surveyID)),
			func(id, _ int64) { scope.Sites[id] = true },
		},
		{
			sqlb.Select("survey_sample_method_id", "survey_sample_site_id").From("survey_sample_method").
				Where(sqlb.InSelect("survey_sample_site_id", sites)),
			func(id, parent int64) { scope.Methods[id] = parent },
		},
		{
			sqlb.Select("survey_sample_period_id", "survey_sample_method_id").From("survey_sample_period").
				Where(sqlb.InSelect("survey_sample_method_id", methods)),
			func(id, parent int64) { scope.Periods[id] = parent },
		},
		{
			sqlb.Select("survey_block_id", "survey_id").From("survey_block").Where(sqlb.Eq("survey_id", surveyID)),
			func(id, _ int64) { scope.Blocks[id] = true },
		},
		{
			sqlb.Select("survey_stratum_id", "survey_id").From("survey_stratum").Where(sqlb.Eq("survey_id", surveyID)),
			func(id, _ int64) { scope.Stratums[id] = true },
		},
		{
			sqlb.Select("method_technique_id", "survey_id").From("method_technique").Where(sqlb.Eq("survey_id", surveyID)),
			func(id, _ int64) { scope.Techniques[id] = true },
		},
		{
			sqlb.Select("survey_observation_id", "survey_id").From("observation").Where(sqlb.Eq("survey_id", surveyID)),
			func(id, _ int64) { scope.Observations[id] = true },
		},
	}

	for _, load := range loads {
		if err := r.pairs(ctx, load.stmt, load.add); err != nil {
			return nil, err
		}
	}
	return scope, nil
}

func (r *SurveyRepository) pairs(ctx context.Context, stmt *sqlb.SelectStmt, add func(id, parent int64)) error {
	query, args := stmt.Build(r.dialect)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load survey scope: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, parent int64
		if err := rows.Scan(&id, &parent); err != nil {
			return fmt.Errorf("load survey scope: %w", err)
		}
		add(id, parent)
	}
	return rows.Err()
}
