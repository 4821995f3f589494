package models

import (
	"encoding/json"
)

// Kind names one reconciled entity kind
type Kind string

const (
	KindSampleSite            Kind = "sample_site"
	KindSampleMethod          Kind = "sample_method"
	KindSamplePeriod          Kind = "sample_period"
	KindSampleBlock           Kind = "sample_block"
	KindSampleStratum         Kind = "sample_stratum"
	KindBlockDefinition       Kind = "block_definition"
	KindStratumDefinition     Kind = "stratum_definition"
	KindQualitativeAttribute  Kind = "qualitative_attribute"
	KindQuantitativeAttribute Kind = "quantitative_attribute"
	KindObservation           Kind = "observation"
)

// SampleSite is the aggregate root of a site subtree. As a desired state it
// carries the complete set of children to retain.
type SampleSite struct {
	SurveySampleSiteID *int64          `json:"survey_sample_site_id,omitempty"`
	SurveyID           int64           `json:"survey_id"`
	Name               string          `json:"name" validate:"required,max=50"`
	Description        string          `json:"description" validate:"max=250"`
	Geojson            json.RawMessage `json:"geojson,omitempty"`
	SampleMethods      []SampleMethod  `json:"sample_methods" validate:"dive"`
	SampleBlocks       []SampleBlock   `json:"sample_blocks" validate:"dive"`
	SampleStratums     []SampleStratum `json:"sample_stratums" validate:"dive"`
}

// SampleMethod is a sampling technique applied at a site
type SampleMethod struct {
	SurveySampleMethodID   *int64         `json:"survey_sample_method_id,omitempty"`
	SurveySampleSiteID     int64          `json:"survey_sample_site_id,omitempty"`
	MethodTechniqueID      *int64         `json:"method_technique_id"`
	MethodResponseMetricID int64          `json:"method_response_metric_id" validate:"required"`
	Description            string         `json:"description" validate:"max=250"`
	SamplePeriods          []SamplePeriod `json:"sample_periods" validate:"dive"`
}

// SamplePeriod is a date/time window during which a method was applied
type SamplePeriod struct {
	SurveySamplePeriodID *int64  `json:"survey_sample_period_id,omitempty"`
	SurveySampleMethodID int64   `json:"survey_sample_method_id,omitempty"`
	StartDate            string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	StartTime            *string `json:"start_time" validate:"omitempty,datetime=15:04:05"`
	EndDate              string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	EndTime              *string `json:"end_time" validate:"omitempty,datetime=15:04:05"`
}

// SampleBlock is a membership row linking a site to a block definition.
// Name and Description are read-only, joined from the definition.
type SampleBlock struct {
	SurveySampleBlockID *int64 `json:"survey_sample_block_id,omitempty"`
	SurveySampleSiteID  int64  `json:"survey_sample_site_id,omitempty"`
	SurveyBlockID       int64  `json:"survey_block_id" validate:"required"`
	Name                string `json:"name,omitempty"`
	Description         string `json:"description,omitempty"`
}

// SampleStratum is a membership row linking a site to a stratum definition
type SampleStratum struct {
	SurveySampleStratumID *int64 `json:"survey_sample_stratum_id,omitempty"`
	SurveySampleSiteID    int64  `json:"survey_sample_site_id,omitempty"`
	SurveyStratumID       int64  `json:"survey_stratum_id" validate:"required"`
	Name                  string `json:"name,omitempty"`
	Description           string `json:"description,omitempty"`
}

// BlockDefinition is a survey-scoped block. SampleCount is read-only.
type BlockDefinition struct {
	SurveyBlockID *int64 `json:"survey_block_id,omitempty"`
	SurveyID      int64  `json:"survey_id"`
	Name          string `json:"name" validate:"required,max=50"`
	Description   string `json:"description" validate:"max=250"`
	SampleCount   int    `json:"sample_block_count"`
}

// StratumDefinition is a survey-scoped stratum. SampleCount is read-only.
type StratumDefinition struct {
	SurveyStratumID *int64 `json:"survey_stratum_id,omitempty"`
	SurveyID        int64  `json:"survey_id"`
	Name            string `json:"name" validate:"required,max=50"`
	Description     string `json:"description" validate:"max=250"`
	SampleCount     int    `json:"sample_stratum_count"`
}

// Technique is a read model of a method technique with its attributes
type Technique struct {
	MethodTechniqueID int64               `json:"method_technique_id"`
	SurveyID          int64               `json:"survey_id"`
	Name              string              `json:"name"`
	Description       string              `json:"description"`
	Attributes        TechniqueAttributes `json:"attributes"`
}

// TechniqueAttributes is the desired or persisted attribute set of a technique
type TechniqueAttributes struct {
	Qualitative  []QualitativeAttribute  `json:"qualitative_attributes" validate:"dive"`
	Quantitative []QuantitativeAttribute `json:"quantitative_attributes" validate:"dive"`
}

// QualitativeAttribute selects one option of a lookup attribute
type QualitativeAttribute struct {
	MethodTechniqueAttributeQualitativeID    *int64 `json:"method_technique_attribute_qualitative_id,omitempty"`
	MethodLookupAttributeQualitativeID       int64  `json:"method_lookup_attribute_qualitative_id" validate:"required"`
	MethodLookupAttributeQualitativeOptionID int64  `json:"method_lookup_attribute_qualitative_option_id" validate:"required"`
}

// QuantitativeAttribute records a numeric value of a lookup attribute
type QuantitativeAttribute struct {
	MethodTechniqueAttributeQuantitativeID *int64  `json:"method_technique_attribute_quantitative_id,omitempty"`
	MethodLookupAttributeQuantitativeID    int64   `json:"method_lookup_attribute_quantitative_id" validate:"required"`
	Value                                  float64 `json:"value"`
}

// Observation is one flat observation record of a survey
type Observation struct {
	SurveyObservationID  *int64   `json:"survey_observation_id,omitempty"`
	SurveyID             int64    `json:"survey_id"`
	SurveySampleSiteID   *int64   `json:"survey_sample_site_id"`
	SurveySampleMethodID *int64   `json:"survey_sample_method_id"`
	SurveySamplePeriodID *int64   `json:"survey_sample_period_id"`
	ItisTSN              *int64   `json:"itis_tsn"`
	Count                int      `json:"count" validate:"gte=0"`
	Latitude             *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude            *float64 `json:"longitude" validate:"omitempty,longitude"`
	ObservationDate      string   `json:"observation_date" validate:"required,datetime=2006-01-02"`
	ObservationTime      *string  `json:"observation_time" validate:"omitempty,datetime=15:04:05"`
}

// ID returns a pointer to v, for building desired states
func ID(v int64) *int64 {
	return &v
}

// Value dereferences an optional identifier, 0 when absent
func Value(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// SurveyScope indexes the identifiers owned by one survey. Child maps point
// at the owning parent.
type SurveyScope struct {
	SurveyID     int64
	Sites        map[int64]bool
	Methods      map[int64]int64 // method -> site
	Periods      map[int64]int64 // period -> method
	Blocks       map[int64]bool
	Stratums     map[int64]bool
	Techniques   map[int64]bool
	Observations map[int64]bool
}

// NewSurveyScope returns an empty scope for surveyID
func NewSurveyScope(surveyID int64) *SurveyScope {
	return &SurveyScope{
		SurveyID:     surveyID,
		Sites:        make(map[int64]bool),
		Methods:      make(map[int64]int64),
		Periods:      make(map[int64]int64),
		Blocks:       make(map[int64]bool),
		Stratums:     make(map[int64]bool),
		Techniques:   make(map[int64]bool),
		Observations: make(map[int64]bool),
	}
}
