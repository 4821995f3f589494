package reconcile

import (
	"context"

	"github.com/ha1tch/fieldsync/pkg/diff"
	"github.com/ha1tch/fieldsync/pkg/models"
)

var (
	qualitativeKey = diff.PtrKey(func(a models.QualitativeAttribute) *int64 {
		return a.MethodTechniqueAttributeQualitativeID
	})
	quantitativeKey = diff.PtrKey(func(a models.QuantitativeAttribute) *int64 {
		return a.MethodTechniqueAttributeQuantitativeID
	})
)

// SyncTechniqueAttributes makes the attributes of a technique match desired.
// The qualitative and quantitative sets are independent and run as siblings.
func (r *Reconciler) SyncTechniqueAttributes(ctx context.Context, surveyID, techniqueID int64, desired models.TechniqueAttributes) (*Summary, error) {
	existing, err := r.techniques.Get(ctx, surveyID, techniqueID)
	if err != nil {
		return nil, err
	}
	if err := r.validate.TechniqueAttributes(existing, desired); err != nil {
		return nil, err
	}

	qualitativeIDs := make([]int64, 0, len(existing.Attributes.Qualitative))
	for _, a := range existing.Attributes.Qualitative {
		qualitativeIDs = append(qualitativeIDs, models.Value(a.MethodTechniqueAttributeQualitativeID))
	}
	quantitativeIDs := make([]int64, 0, len(existing.Attributes.Quantitative))
	for _, a := range existing.Attributes.Quantitative {
		quantitativeIDs = append(quantitativeIDs, models.Value(a.MethodTechniqueAttributeQuantitativeID))
	}

	qualitative := diff.Compute(qualitativeIDs, desired.Qualitative, qualitativeKey)
	quantitative := diff.Compute(quantitativeIDs, desired.Quantitative, quantitativeKey)

	summary := newSummary()
	group := r.siblings(ctx)
	group.Go(func(ctx context.Context) error {
		return r.applyQualitative(ctx, techniqueID, qualitative, summary)
	})
	group.Go(func(ctx context.Context) error {
		return r.applyQuantitative(ctx, techniqueID, quantitative, summary)
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	r.logger.Debug().
		Int64("survey_id", surveyID).
		Int64("technique_id", techniqueID).
		Object("summary", summary).
		Msg("Technique attributes reconciled")
	return summary, nil
}

func (r *Reconciler) applyQualitative(ctx context.Context, techniqueID int64,
	res diff.Result[models.QualitativeAttribute, int64], summary *Summary) error {

	removed, err := r.attributes.DeleteQualitative(ctx, techniqueID, res.Delete)
	if err != nil {
		return err
	}
	summary.deleted(models.KindQualitativeAttribute, len(removed))

	for _, a := range res.Update {
		if _, err := r.attributes.UpdateQualitative(ctx, techniqueID, a); err != nil {
			return err
		}
		summary.updated(models.KindQualitativeAttribute, 1)
	}
	for _, a := range res.Insert {
		if _, err := r.attributes.InsertQualitative(ctx, techniqueID, a); err != nil {
			return err
		}
		summary.inserted(models.KindQualitativeAttribute, 1)
	}
	return nil
}

func (r *Reconciler) applyQuantitative(ctx context.Context, techniqueID int64,
	res diff.Result[models.QuantitativeAttribute, int64], summary *Summary) error {

	removed, err := r.attributes.DeleteQuantitative(ctx, techniqueID, res.Delete)
	if err != nil {
		return err
	}
	summary.deleted(models.KindQuantitativeAttribute, len(removed))

	for _, a := range res.Update {
		if _, err := r.attributes.UpdateQuantitative(ctx, techniqueID, a); err != nil {
			return err
		}
		summary.updated(models.KindQuantitativeAttribute, 1)
	}
	for _, a := range res.Insert {
		if _, err := r.attributes.InsertQuantitative(ctx, techniqueID, a); err != nil {
			return err
		}
		summary.inserted(models.KindQuantitativeAttribute, 1)
	}
	return nil
}
