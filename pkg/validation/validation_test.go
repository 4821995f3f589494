package validation_test

import (
	"testing"

	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/storage"
	"github.com/ha1tch/fieldsync/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScope() *models.SurveyScope {
	scope := models.NewSurveyScope(1)
	scope.Sites[10] = true
	scope.Sites[11] = true
	scope.Methods[100] = 10
	scope.Methods[101] = 11
	scope.Periods[1000] = 100
	scope.Periods[1001] = 101
	scope.Blocks[5] = true
	scope.Stratums[6] = true
	scope.Techniques[7] = true
	scope.Observations[50] = true
	return scope
}

func existingSite() *models.SampleSite {
	return &models.SampleSite{
		SurveySampleSiteID: models.ID(10),
		SurveyID:           1,
		Name:               "Ridge",
		SampleMethods: []models.SampleMethod{{
			SurveySampleMethodID: models.ID(100),
			SamplePeriods:        []models.SamplePeriod{{SurveySamplePeriodID: models.ID(1000)}},
		}},
		SampleBlocks: []models.SampleBlock{{SurveySampleBlockID: models.ID(20), SurveyBlockID: 5}},
	}
}

func problems(t *testing.T, err error) []string {
	t.Helper()
	var ve *storage.ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Problems
}

func TestSite_Valid(t *testing.T) {
	v := validation.New()
	desired := models.SampleSite{
		SurveySampleSiteID: models.ID(10),
		Name:               "Ridge",
		SampleMethods: []models.SampleMethod{
			{
				SurveySampleMethodID:   models.ID(100),
				MethodTechniqueID:      models.ID(7),
				MethodResponseMetricID: 1,
				SamplePeriods: []models.SamplePeriod{
					{SurveySamplePeriodID: models.ID(1000), StartDate: "2024-01-01", EndDate: "2024-01-02"},
					{StartDate: "2024-02-01", EndDate: "2024-02-02"},
				},
			},
			{MethodResponseMetricID: 2},
		},
		SampleBlocks:   []models.SampleBlock{{SurveySampleBlockID: models.ID(20), SurveyBlockID: 5}},
		SampleStratums: []models.SampleStratum{{SurveyStratumID: 6}},
	}

	assert.NoError(t, v.Site(testScope(), existingSite(), desired))
}

func TestSite_FieldShape(t *testing.T) {
	v := validation.New()
	bad := "25:00"
	desired := models.SampleSite{
		SampleMethods: []models.SampleMethod{{
			MethodResponseMetricID: 1,
			SamplePeriods:          []models.SamplePeriod{{StartDate: "01/02/2024", StartTime: &bad, EndDate: "2024-01-02"}},
		}},
	}

	got := problems(t, v.Site(testScope(), nil, desired))
	assert.Contains(t, got, "SampleSite.name: failed required")
	assert.Contains(t, got, "SampleSite.sample_methods[0].sample_periods[0].start_date: failed datetime=2006-01-02")
	assert.Contains(t, got, "SampleSite.sample_methods[0].sample_periods[0].start_time: failed datetime=15:04:05")
}

func TestSite_Ownership(t *testing.T) {
	v := validation.New()
	scope := testScope()

	tests := []struct {
		name    string
		desired models.SampleSite
		want    string
	}{
		{
			name: "method of another site",
			desired: models.SampleSite{Name: "x", SampleMethods: []models.SampleMethod{
				{SurveySampleMethodID: models.ID(101), MethodResponseMetricID: 1},
			}},
			want: "sample_methods[0]: method 101 does not belong to site 10",
		},
		{
			name: "period of another method",
			desired: models.SampleSite{Name: "x", SampleMethods: []models.SampleMethod{{
				SurveySampleMethodID: models.ID(100), MethodResponseMetricID: 1,
				SamplePeriods: []models.SamplePeriod{{SurveySamplePeriodID: models.ID(1001), StartDate: "2024-01-01", EndDate: "2024-01-01"}},
			}}},
			want: "sample_methods[0].sample_periods[0]: period 1001 does not belong to method 100",
		},
		{
			name: "period under new method",
			desired: models.SampleSite{Name: "x", SampleMethods: []models.SampleMethod{{
				MethodResponseMetricID: 1,
				SamplePeriods:          []models.SamplePeriod{{SurveySamplePeriodID: models.ID(1000), StartDate: "2024-01-01", EndDate: "2024-01-01"}},
			}}},
			want: "sample_methods[0].sample_periods[0]: period 1000 cannot move to a new method",
		},
		{
			name: "technique outside survey",
			desired: models.SampleSite{Name: "x", SampleMethods: []models.SampleMethod{
				{MethodTechniqueID: models.ID(8), MethodResponseMetricID: 1},
			}},
			want: "sample_methods[0]: technique 8 is not in survey 1",
		},
		{
			name:    "block outside survey",
			desired: models.SampleSite{Name: "x", SampleBlocks: []models.SampleBlock{{SurveyBlockID: 99}}},
			want:    "sample_blocks[0]: block 99 is not in survey 1",
		},
		{
			name:    "foreign membership id",
			desired: models.SampleSite{Name: "x", SampleStratums: []models.SampleStratum{{SurveySampleStratumID: models.ID(3), SurveyStratumID: 6}}},
			want:    "sample_stratums[0]: membership 3 does not belong to site 10",
		},
		{
			name:    "mismatched site id",
			desired: models.SampleSite{SurveySampleSiteID: models.ID(11), Name: "x"},
			want:    "site id 11 does not match site 10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := problems(t, v.Site(scope, existingSite(), tt.desired))
			assert.Equal(t, []string{tt.want}, got)
		})
	}
}

func TestSite_NewSiteWithIDs(t *testing.T) {
	v := validation.New()
	desired := models.SampleSite{SurveySampleSiteID: models.ID(10), Name: "x"}

	err := v.Site(testScope(), nil, desired)
	assert.EqualError(t, err, "invalid sample_site: new site must not carry an id, got 10")
}

func TestSites(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Sites(testScope(), []int64{10, 11}))
	assert.Equal(t, []string{"site 12 is not in survey 1"}, problems(t, v.Sites(testScope(), []int64{10, 12})))
}

func TestDefinitions(t *testing.T) {
	v := validation.New()
	scope := testScope()

	assert.NoError(t, v.BlockDefinitions(scope, []models.BlockDefinition{
		{SurveyBlockID: models.ID(5), Name: "North"},
		{Name: "South"},
	}))
	assert.Equal(t, []string{"[0]: block 6 is not in survey 1"},
		problems(t, v.BlockDefinitions(scope, []models.BlockDefinition{{SurveyBlockID: models.ID(6), Name: "x"}})))

	assert.NoError(t, v.StratumDefinitions(scope, []models.StratumDefinition{{SurveyStratumID: models.ID(6), Name: "Low"}}))
	assert.Equal(t, []string{"StratumDefinition.name: failed required"},
		problems(t, v.StratumDefinitions(scope, []models.StratumDefinition{{}})))
}

func TestTechniqueAttributes(t *testing.T) {
	v := validation.New()
	existing := models.Technique{
		MethodTechniqueID: 7,
		Attributes: models.TechniqueAttributes{
			Qualitative: []models.QualitativeAttribute{{MethodTechniqueAttributeQualitativeID: models.ID(1)}},
		},
	}

	assert.NoError(t, v.TechniqueAttributes(existing, models.TechniqueAttributes{
		Qualitative: []models.QualitativeAttribute{{
			MethodTechniqueAttributeQualitativeID:    models.ID(1),
			MethodLookupAttributeQualitativeID:       2,
			MethodLookupAttributeQualitativeOptionID: 3,
		}},
	}))

	err := v.TechniqueAttributes(existing, models.TechniqueAttributes{
		Quantitative: []models.QuantitativeAttribute{{
			MethodTechniqueAttributeQuantitativeID: models.ID(1),
			MethodLookupAttributeQuantitativeID:    2,
		}},
	})
	assert.Equal(t, []string{"quantitative_attributes[0]: attribute 1 does not belong to technique 7"}, problems(t, err))
}

func TestObservations(t *testing.T) {
	v := validation.New()
	scope := testScope()
	lat := 91.0

	assert.NoError(t, v.Observations(scope, []models.Observation{
		{SurveyObservationID: models.ID(50), SurveySampleSiteID: models.ID(10), SurveySampleMethodID: models.ID(100),
			SurveySamplePeriodID: models.ID(1000), ObservationDate: "2024-01-01"},
		{ObservationDate: "2024-01-01"},
		{SurveySampleSiteID: models.ID(11), SurveySamplePeriodID: models.ID(1001), ObservationDate: "2024-01-01"},
	}))

	err := v.Observations(scope, []models.Observation{
		{SurveyObservationID: models.ID(51), ObservationDate: "2024-01-01"},
		{SurveySampleSiteID: models.ID(10), SurveySampleMethodID: models.ID(101), ObservationDate: "2024-01-01"},
		{SurveySampleMethodID: models.ID(100), SurveySamplePeriodID: models.ID(1001), ObservationDate: "2024-01-01"},
		{Latitude: &lat, Count: -1, ObservationDate: "2024-01-01"},
		{SurveySampleSiteID: models.ID(10), SurveySamplePeriodID: models.ID(1001), ObservationDate: "2024-01-01"},
	})
	assert.Equal(t, []string{
		"[0]: observation 51 is not in survey 1",
		"[1]: method 101 does not belong to site 10",
		"[2]: period 1001 does not belong to method 100",
		"Observation.count: failed gte=0",
		"Observation.latitude: failed latitude",
		"[4]: period 1001 does not belong to site 10",
	}, problems(t, err))
}
