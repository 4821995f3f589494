package reconcile

import (
	"context"

	"github.com/ha1tch/fieldsync/pkg/diff"
	"github.com/ha1tch/fieldsync/pkg/models"
)

var observationKey = diff.PtrKey(func(o models.Observation) *int64 { return o.SurveyObservationID })

// SyncObservations replaces the survey's observations with rows. Keyed rows
// are updated and the rest inserted in batched upserts, then every
// observation of the survey not written is deleted in one statement.
func (r *Reconciler) SyncObservations(ctx context.Context, surveyID int64, rows []models.Observation) (*Summary, error) {
	scope, err := r.surveys.Scope(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if err := r.validate.Observations(scope, rows); err != nil {
		return nil, err
	}

	if dups := diff.Duplicates(rows, observationKey); len(dups) > 0 {
		r.logger.Warn().Int64("survey_id", surveyID).Ints64("observation_ids", dups).
			Msg("Duplicate observation ids in desired state, last occurrence wins")
	}
	res := diff.Compute(sortedKeys(scope.Observations), rows, observationKey)

	upserts := make([]models.Observation, 0, len(res.Update)+len(res.Insert))
	upserts = append(upserts, res.Update...)
	upserts = append(upserts, res.Insert...)

	retained, err := r.observations.Upsert(ctx, surveyID, upserts)
	if err != nil {
		return nil, err
	}
	removed, err := r.observations.DeleteNotIn(ctx, surveyID, retained)
	if err != nil {
		return nil, err
	}

	summary := newSummary()
	summary.updated(models.KindObservation, len(res.Update))
	summary.inserted(models.KindObservation, len(res.Insert))
	summary.deleted(models.KindObservation, int(removed))

	r.logger.Debug().Int64("survey_id", surveyID).Object("summary", summary).Msg("Observations reconciled")
	return summary, nil
}
