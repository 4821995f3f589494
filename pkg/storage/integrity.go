package storage

import (
	"context"
	"fmt"
)

// IntegrityProblem describes rows that link records of different surveys
type IntegrityProblem struct {
	Check string
	Count int
}

// integrityChecks count rows whose parent chain crosses a survey boundary.
// Foreign keys cannot express these, so they are checked after the fact.
var integrityChecks = []struct {
	name  string
	query string
}{
	{"sample_block_survey", `SELECT COUNT(*) FROM survey_sample_block ssb
		JOIN survey_sample_site sss ON sss.survey_sample_site_id = ssb.survey_sample_site_id
		JOIN survey_block sb ON sb.survey_block_id = ssb.survey_block_id
		WHERE sb.survey_id <> sss.survey_id`},
	{"sample_stratum_survey", `SELECT COUNT(*) FROM survey_sample_stratum sst
		JOIN survey_sample_site sss ON sss.survey_sample_site_id = sst.survey_sample_site_id
		JOIN survey_stratum ss ON ss.survey_stratum_id = sst.survey_stratum_id
		WHERE ss.survey_id <> sss.survey_id`},
	{"sample_method_technique_survey", `SELECT COUNT(*) FROM survey_sample_method ssm
		JOIN survey_sample_site sss ON sss.survey_sample_site_id = ssm.survey_sample_site_id
		JOIN method_technique mt ON mt.method_technique_id = ssm.method_technique_id
		WHERE mt.survey_id <> sss.survey_id`},
	{"observation_site_survey", `SELECT COUNT(*) FROM observation o
		JOIN survey_sample_site sss ON sss.survey_sample_site_id = o.survey_sample_site_id
		WHERE sss.survey_id <> o.survey_id`},
	{"observation_period_method", `SELECT COUNT(*) FROM observation o
		JOIN survey_sample_period ssp ON ssp.survey_sample_period_id = o.survey_sample_period_id
		WHERE o.survey_sample_method_id IS NOT NULL
		AND ssp.survey_sample_method_id <> o.survey_sample_method_id`},
}

// VerifyIntegrity runs the cross-survey consistency checks and returns the
// ones that found offending rows
func VerifyIntegrity(ctx context.Context, db DB) ([]IntegrityProblem, error) {
	var problems []IntegrityProblem
	for _, check := range integrityChecks {
		var count int
		if err := db.QueryRowContext(ctx, check.query).Scan(&count); err != nil {
			return nil, fmt.Errorf("integrity check %s: %w", check.name, err)
		}
		if count > 0 {
			problems = append(problems, IntegrityProblem{Check: check.name, Count: count})
		}
	}
	return problems, nil
}
