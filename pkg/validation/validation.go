// Package validation checks desired states before any write: field shape
// through struct tags, and ownership of every identifier against the survey.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

// Validator checks desired states. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator reporting fields by their JSON names
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// report collects problems for one entity
type report struct {
	entity   string
	problems []string
}

func (r *report) addf(format string, args ...any) {
	r.problems = append(r.problems, fmt.Sprintf(format, args...))
}

func (r *report) err() error {
	if len(r.problems) == 0 {
		return nil
	}
	return &storage.ValidationError{Entity: r.entity, Problems: r.problems}
}

// shape runs the struct tags of s into r
func (v *Validator) shape(r *report, s any) {
	err := v.validate.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		r.addf("%v", err)
		return
	}
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			r.addf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		} else {
			r.addf("%s: failed %s", fe.Namespace(), fe.Tag())
		}
	}
}

// Struct checks the field shape of s
func (v *Validator) Struct(entity models.Kind, s any) error {
	r := &report{entity: string(entity)}
	v.shape(r, s)
	return r.err()
}

// Site checks a desired site subtree. existing is the persisted subtree, or
// nil when the site is being created.
func (v *Validator) Site(scope *models.SurveyScope, existing *models.SampleSite, desired models.SampleSite) error {
	r := &report{entity: string(models.KindSampleSite)}
	v.shape(r, desired)

	var siteID int64
	if existing != nil {
		siteID = models.Value(existing.SurveySampleSiteID)
		if desired.SurveySampleSiteID != nil && *desired.SurveySampleSiteID != siteID {
			r.addf("site id %d does not match site %d", *desired.SurveySampleSiteID, siteID)
		}
	} else if desired.SurveySampleSiteID != nil {
		r.addf("new site must not carry an id, got %d", *desired.SurveySampleSiteID)
	}

	for i, m := range desired.SampleMethods {
		if m.MethodTechniqueID != nil && !scope.Techniques[*m.MethodTechniqueID] {
			r.addf("sample_methods[%d]: technique %d is not in survey %d", i, *m.MethodTechniqueID, scope.SurveyID)
		}

		var methodID int64
		if m.SurveySampleMethodID != nil {
			methodID = *m.SurveySampleMethodID
			if owner, ok := scope.Methods[methodID]; !ok || existing == nil || owner != siteID {
				r.addf("sample_methods[%d]: method %d does not belong to site %d", i, methodID, siteID)
				continue
			}
		}

		for j, p := range m.SamplePeriods {
			if p.SurveySamplePeriodID == nil {
				continue
			}
			periodID := *p.SurveySamplePeriodID
			if methodID == 0 {
				r.addf("sample_methods[%d].sample_periods[%d]: period %d cannot move to a new method", i, j, periodID)
				continue
			}
			if owner, ok := scope.Periods[periodID]; !ok || owner != methodID {
				r.addf("sample_methods[%d].sample_periods[%d]: period %d does not belong to method %d", i, j, periodID, methodID)
			}
		}
	}

	var blockMembers, stratumMembers map[int64]bool
	if existing != nil {
		blockMembers = make(map[int64]bool, len(existing.SampleBlocks))
		for _, b := range existing.SampleBlocks {
			blockMembers[models.Value(b.SurveySampleBlockID)] = true
		}
		stratumMembers = make(map[int64]bool, len(existing.SampleStratums))
		for _, s := range existing.SampleStratums {
			stratumMembers[models.Value(s.SurveySampleStratumID)] = true
		}
	}

	for i, b := range desired.SampleBlocks {
		if !scope.Blocks[b.SurveyBlockID] {
			r.addf("sample_blocks[%d]: block %d is not in survey %d", i, b.SurveyBlockID, scope.SurveyID)
		}
		if b.SurveySampleBlockID != nil && !blockMembers[*b.SurveySampleBlockID] {
			r.addf("sample_blocks[%d]: membership %d does not belong to site %d", i, *b.SurveySampleBlockID, siteID)
		}
	}
	for i, s := range desired.SampleStratums {
		if !scope.Stratums[s.SurveyStratumID] {
			r.addf("sample_stratums[%d]: stratum %d is not in survey %d", i, s.SurveyStratumID, scope.SurveyID)
		}
		if s.SurveySampleStratumID != nil && !stratumMembers[*s.SurveySampleStratumID] {
			r.addf("sample_stratums[%d]: membership %d does not belong to site %d", i, *s.SurveySampleStratumID, siteID)
		}
	}

	return r.err()
}

// Sites checks that every id names a site of the survey
func (v *Validator) Sites(scope *models.SurveyScope, siteIDs []int64) error {
	r := &report{entity: string(models.KindSampleSite)}
	for _, id := range siteIDs {
		if !scope.Sites[id] {
			r.addf("site %d is not in survey %d", id, scope.SurveyID)
		}
	}
	return r.err()
}

// BlockDefinitions checks desired block definitions of the survey
func (v *Validator) BlockDefinitions(scope *models.SurveyScope, desired []models.BlockDefinition) error {
	r := &report{entity: string(models.KindBlockDefinition)}
	for i, d := range desired {
		v.shape(r, d)
		if d.SurveyBlockID != nil && !scope.Blocks[*d.SurveyBlockID] {
			r.addf("[%d]: block %d is not in survey %d", i, *d.SurveyBlockID, scope.SurveyID)
		}
	}
	return r.err()
}

// StratumDefinitions checks desired stratum definitions of the survey
func (v *Validator) StratumDefinitions(scope *models.SurveyScope, desired []models.StratumDefinition) error {
	r := &report{entity: string(models.KindStratumDefinition)}
	for i, d := range desired {
		v.shape(r, d)
		if d.SurveyStratumID != nil && !scope.Stratums[*d.SurveyStratumID] {
			r.addf("[%d]: stratum %d is not in survey %d", i, *d.SurveyStratumID, scope.SurveyID)
		}
	}
	return r.err()
}

// TechniqueAttributes checks a desired attribute set against the persisted
// attributes of the technique
func (v *Validator) TechniqueAttributes(existing models.Technique, desired models.TechniqueAttributes) error {
	r := &report{entity: "technique_attribute"}
	v.shape(r, desired)

	qualitative := make(map[int64]bool, len(existing.Attributes.Qualitative))
	for _, a := range existing.Attributes.Qualitative {
		qualitative[models.Value(a.MethodTechniqueAttributeQualitativeID)] = true
	}
	quantitative := make(map[int64]bool, len(existing.Attributes.Quantitative))
	for _, a := range existing.Attributes.Quantitative {
		quantitative[models.Value(a.MethodTechniqueAttributeQuantitativeID)] = true
	}

	for i, a := range desired.Qualitative {
		if id := a.MethodTechniqueAttributeQualitativeID; id != nil && !qualitative[*id] {
			r.addf("qualitative_attributes[%d]: attribute %d does not belong to technique %d", i, *id, existing.MethodTechniqueID)
		}
	}
	for i, a := range desired.Quantitative {
		if id := a.MethodTechniqueAttributeQuantitativeID; id != nil && !quantitative[*id] {
			r.addf("quantitative_attributes[%d]: attribute %d does not belong to technique %d", i, *id, existing.MethodTechniqueID)
		}
	}
	return r.err()
}

// Observations checks observation rows against the survey
func (v *Validator) Observations(scope *models.SurveyScope, rows []models.Observation) error {
	r := &report{entity: string(models.KindObservation)}
	for i, o := range rows {
		v.shape(r, o)

		if o.SurveyObservationID != nil && !scope.Observations[*o.SurveyObservationID] {
			r.addf("[%d]: observation %d is not in survey %d", i, *o.SurveyObservationID, scope.SurveyID)
		}
		if o.SurveySampleSiteID != nil && !scope.Sites[*o.SurveySampleSiteID] {
			r.addf("[%d]: site %d is not in survey %d", i, *o.SurveySampleSiteID, scope.SurveyID)
		}
		if o.SurveySampleMethodID != nil {
			site, ok := scope.Methods[*o.SurveySampleMethodID]
			switch {
			case !ok:
				r.addf("[%d]: method %d is not in survey %d", i, *o.SurveySampleMethodID, scope.SurveyID)
			case o.SurveySampleSiteID != nil && site != *o.SurveySampleSiteID:
				r.addf("[%d]: method %d does not belong to site %d", i, *o.SurveySampleMethodID, *o.SurveySampleSiteID)
			}
		}
		if o.SurveySamplePeriodID != nil {
			method, ok := scope.Periods[*o.SurveySamplePeriodID]
			switch {
			case !ok:
				r.addf("[%d]: period %d is not in survey %d", i, *o.SurveySamplePeriodID, scope.SurveyID)
			case o.SurveySampleMethodID != nil && method != *o.SurveySampleMethodID:
				r.addf("[%d]: period %d does not belong to method %d", i, *o.SurveySamplePeriodID, *o.SurveySampleMethodID)
			case o.SurveySampleMethodID == nil && o.SurveySampleSiteID != nil && scope.Methods[method] != *o.SurveySampleSiteID:
				r.addf("[%d]: period %d does not belong to site %d", i, *o.SurveySamplePeriodID, *o.SurveySampleSiteID)
			}
		}
	}
	return r.err()
}
