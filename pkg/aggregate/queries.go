package aggregate

import (
	"context"
	"fmt"

	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

func sitesOfSurvey(surveyID int64) *sqlb.SelectStmt {
	return sqlb.Select("survey_sample_site_id").From("survey_sample_site").Where(sqlb.Eq("survey_id", surveyID))
}

func methodsOfSurvey(surveyID int64) *sqlb.SelectStmt {
	return sqlb.Select("m.survey_sample_method_id").
		From("survey_sample_method m").
		Join("JOIN survey_sample_site s ON s.survey_sample_site_id = m.survey_sample_site_id").
		Where(sqlb.Eq("s.survey_id", surveyID))
}

// SampleSiteTree is the site -> {methods -> periods, blocks, stratums} read
func SampleSiteTree(d sqlb.Dialect, surveyID int64) *Level {
	periods := &Level{
		Name:      "sample_periods",
		Table:     "survey_sample_period ssp",
		Key:       "ssp.survey_sample_period_id",
		ParentKey: "ssp.survey_sample_method_id",
		Fields: []sqlb.Pair{
			sqlb.P("survey_sample_period_id", "ssp.survey_sample_period_id"),
			sqlb.P("survey_sample_method_id", "ssp.survey_sample_method_id"),
			sqlb.P("start_date", "ssp.start_date"),
			sqlb.P("start_time", "ssp.start_time"),
			sqlb.P("end_date", "ssp.end_date"),
			sqlb.P("end_time", "ssp.end_time"),
		},
		OrderBy: []string{"ssp.start_date", "ssp.start_time", "ssp.survey_sample_period_id"},
		Scope:   sqlb.InSelect("ssp.survey_sample_method_id", methodsOfSurvey(surveyID)),
	}

	methods := &Level{
		Name:      "sample_methods",
		Table:     "survey_sample_method ssm",
		Key:       "ssm.survey_sample_method_id",
		ParentKey: "ssm.survey_sample_site_id",
		Fields: []sqlb.Pair{
			sqlb.P("survey_sample_method_id", "ssm.survey_sample_method_id"),
			sqlb.P("survey_sample_site_id", "ssm.survey_sample_site_id"),
			sqlb.P("method_technique_id", "ssm.method_technique_id"),
			sqlb.P("method_response_metric_id", "ssm.method_response_metric_id"),
			sqlb.P("description", "ssm.description"),
		},
		Scope:    sqlb.InSelect("ssm.survey_sample_site_id", sitesOfSurvey(surveyID)),
		Children: []*Level{periods},
	}

	blocks := &Level{
		Name:      "sample_blocks",
		Table:     "survey_sample_block ssb",
		Key:       "ssb.survey_sample_block_id",
		ParentKey: "ssb.survey_sample_site_id",
		Joins:     []string{"JOIN survey_block sb ON sb.survey_block_id = ssb.survey_block_id"},
		Fields: []sqlb.Pair{
			sqlb.P("survey_sample_block_id", "ssb.survey_sample_block_id"),
			sqlb.P("survey_sample_site_id", "ssb.survey_sample_site_id"),
			sqlb.P("survey_block_id", "ssb.survey_block_id"),
			sqlb.P("name", "sb.name"),
			sqlb.P("description", "sb.description"),
		},
		Scope: sqlb.InSelect("ssb.survey_sample_site_id", sitesOfSurvey(surveyID)),
	}

	stratums := &Level{
		Name:      "sample_stratums",
		Table:     "survey_sample_stratum sst",
		Key:       "sst.survey_sample_stratum_id",
		ParentKey: "sst.survey_sample_site_id",
		Joins:     []string{"JOIN survey_stratum ss ON ss.survey_stratum_id = sst.survey_stratum_id"},
		Fields: []sqlb.Pair{
			sqlb.P("survey_sample_stratum_id", "sst.survey_sample_stratum_id"),
			sqlb.P("survey_sample_site_id", "sst.survey_sample_site_id"),
			sqlb.P("survey_stratum_id", "sst.survey_stratum_id"),
			sqlb.P("name", "ss.name"),
			sqlb.P("description", "ss.description"),
		},
		Scope: sqlb.InSelect("sst.survey_sample_site_id", sitesOfSurvey(surveyID)),
	}

	return &Level{
		Name:  "sample_sites",
		Table: "survey_sample_site sss",
		Key:   "sss.survey_sample_site_id",
		Fields: []sqlb.Pair{
			sqlb.P("survey_sample_site_id", "sss.survey_sample_site_id"),
			sqlb.P("survey_id", "sss.survey_id"),
			sqlb.P("name", "sss.name"),
			sqlb.P("description", "sss.description"),
			sqlb.P("geojson", d.JSONValue("sss.geojson")),
		},
		Children: []*Level{methods, blocks, stratums},
	}
}

// SampleSites reads the complete subtrees of a survey's sites, optionally
// limited to siteIDs
func SampleSites(ctx context.Context, db storage.DB, d sqlb.Dialect, surveyID int64, siteIDs ...int64) ([]models.SampleSite, error) {
	where := sqlb.Eq("sss.survey_id", surveyID)
	if len(siteIDs) > 0 {
		where = sqlb.And(where, sqlb.In("sss.survey_sample_site_id", siteIDs))
	}

	sites, err := Fetch[models.SampleSite](ctx, db, d, SampleSiteTree(d, surveyID), where)
	if err != nil {
		return nil, err
	}
	for i := range sites {
		if string(sites[i].Geojson) == "null" {
			sites[i].Geojson = nil
		}
	}
	return sites, nil
}

// SampleSite reads one site subtree, or returns storage.ErrNotFound
func SampleSite(ctx context.Context, db storage.DB, d sqlb.Dialect, surveyID, siteID int64) (models.SampleSite, error) {
	sites, err := SampleSites(ctx, db, d, surveyID, siteID)
	if err != nil {
		return models.SampleSite{}, err
	}
	if len(sites) == 0 {
		return models.SampleSite{}, fmt.Errorf("sample site %d in survey %d: %w", siteID, surveyID, storage.ErrNotFound)
	}
	return sites[0], nil
}

// TechniqueTree is the technique -> attributes read
func TechniqueTree(surveyID int64) *Level {
	ofSurvey := func() *sqlb.SelectStmt {
		return sqlb.Select("method_technique_id").From("method_technique").Where(sqlb.Eq("survey_id", surveyID))
	}

	qualitative := &Level{
		Name:      "qualitative_attributes",
		Nest:      "attributes",
		Table:     "method_technique_attribute_qualitative mtql",
		Key:       "mtql.method_technique_attribute_qualitative_id",
		ParentKey: "mtql.method_technique_id",
		Fields: []sqlb.Pair{
			sqlb.P("method_technique_attribute_qualitative_id", "mtql.method_technique_attribute_qualitative_id"),
			sqlb.P("method_lookup_attribute_qualitative_id", "mtql.method_lookup_attribute_qualitative_id"),
			sqlb.P("method_lookup_attribute_qualitative_option_id", "mtql.method_lookup_attribute_qualitative_option_id"),
		},
		Scope: sqlb.InSelect("mtql.method_technique_id", ofSurvey()),
	}

	quantitative := &Level{
		Name:      "quantitative_attributes",
		Nest:      "attributes",
		Table:     "method_technique_attribute_quantitative mtqn",
		Key:       "mtqn.method_technique_attribute_quantitative_id",
		ParentKey: "mtqn.method_technique_id",
		Fields: []sqlb.Pair{
			sqlb.P("method_technique_attribute_quantitative_id", "mtqn.method_technique_attribute_quantitative_id"),
			sqlb.P("method_lookup_attribute_quantitative_id", "mtqn.method_lookup_attribute_quantitative_id"),
			sqlb.P("value", "mtqn.value"),
		},
		Scope: sqlb.InSelect("mtqn.method_technique_id", ofSurvey()),
	}

	return &Level{
		Name:  "techniques",
		Table: "method_technique mt",
		Key:   "mt.method_technique_id",
		Fields: []sqlb.Pair{
			sqlb.P("method_technique_id", "mt.method_technique_id"),
			sqlb.P("survey_id", "mt.survey_id"),
			sqlb.P("name", "mt.name"),
			sqlb.P("description", "mt.description"),
		},
		Children: []*Level{qualitative, quantitative},
	}
}

// Techniques reads a survey's techniques with their attributes, optionally
// limited to techniqueIDs
func Techniques(ctx context.Context, db storage.DB, d sqlb.Dialect, surveyID int64, techniqueIDs ...int64) ([]models.Technique, error) {
	where := sqlb.Eq("mt.survey_id", surveyID)
	if len(techniqueIDs) > 0 {
		where = sqlb.And(where, sqlb.In("mt.method_technique_id", techniqueIDs))
	}
	return Fetch[models.Technique](ctx, db, d, TechniqueTree(surveyID), where)
}

// BlockDefinitions reads a survey's blocks with the number of sites using each
func BlockDefinitions(ctx context.Context, db storage.DB, d sqlb.Dialect, surveyID int64) ([]models.BlockDefinition, error) {
	query, args := definitionsQuery("survey_block", "survey_sample_block", "survey_block_id", "survey_sample_block_id", surveyID).Build(d)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select block definitions: %w", err)
	}
	defer rows.Close()

	defs := make([]models.BlockDefinition, 0)
	for rows.Next() {
		var def models.BlockDefinition
		var id int64
		if err := rows.Scan(&id, &def.SurveyID, &def.Name, &def.Description, &def.SampleCount); err != nil {
			return nil, fmt.Errorf("scan block definition: %w", err)
		}
		def.SurveyBlockID = models.ID(id)
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// StratumDefinitions reads a survey's strata with the number of sites using each
func StratumDefinitions(ctx context.Context, db storage.DB, d sqlb.Dialect, surveyID int64) ([]models.StratumDefinition, error) {
	query, args := definitionsQuery("survey_stratum", "survey_sample_stratum", "survey_stratum_id", "survey_sample_stratum_id", surveyID).Build(d)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select stratum definitions: %w", err)
	}
	defer rows.Close()

	defs := make([]models.StratumDefinition, 0)
	for rows.Next() {
		var def models.StratumDefinition
		var id int64
		if err := rows.Scan(&id, &def.SurveyID, &def.Name, &def.Description, &def.SampleCount); err != nil {
			return nil, fmt.Errorf("scan stratum definition: %w", err)
		}
		def.SurveyStratumID = models.ID(id)
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func definitionsQuery(table, memberTable, key, memberKey string, surveyID int64) *sqlb.SelectStmt {
	return sqlb.Select("d."+key, "d.survey_id", "d.name", "d.description", "COUNT(m."+memberKey+")").
		From(table+" d").
		Join("LEFT JOIN "+memberTable+" m ON m."+key+" = d."+key).
		Where(sqlb.Eq("d.survey_id", surveyID)).
		GroupBy("d."+key, "d.survey_id", "d.name", "d.description").
		OrderBy("d." + key)
}
