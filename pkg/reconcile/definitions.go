package reconcile

import (
	"context"

	"github.com/ha1tch/fieldsync/pkg/diff"
	"github.com/ha1tch/fieldsync/pkg/models"
)

var (
	blockDefinitionKey   = diff.PtrKey(func(d models.BlockDefinition) *int64 { return d.SurveyBlockID })
	stratumDefinitionKey = diff.PtrKey(func(d models.StratumDefinition) *int64 { return d.SurveyStratumID })
)

// definitionWriter is the definition half of a membership repository
type definitionWriter interface {
	DeleteByDefinitions(ctx context.Context, defIDs []int64) ([]int64, error)
	InsertDefinition(ctx context.Context, surveyID int64, name, description string) (int64, error)
	UpdateDefinition(ctx context.Context, surveyID, id int64, name, description string) error
	DeleteDefinitions(ctx context.Context, surveyID int64, ids []int64) ([]int64, error)
}

// definitionRow is the writable part of a block or stratum definition
type definitionRow struct {
	id          *int64
	name        string
	description string
}

// SyncBlockDefinitions replaces the survey's block definitions with desired.
// Memberships of removed blocks are deleted before the blocks.
func (r *Reconciler) SyncBlockDefinitions(ctx context.Context, surveyID int64, desired []models.BlockDefinition) (*Summary, error) {
	scope, err := r.surveys.Scope(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if err := r.validate.BlockDefinitions(scope, desired); err != nil {
		return nil, err
	}

	res := diff.Compute(sortedKeys(scope.Blocks), desired, blockDefinitionKey)
	rows := func(defs []models.BlockDefinition) []definitionRow {
		out := make([]definitionRow, 0, len(defs))
		for _, d := range defs {
			out = append(out, definitionRow{id: d.SurveyBlockID, name: d.Name, description: d.Description})
		}
		return out
	}

	summary := newSummary()
	err = r.applyDefinitions(ctx, surveyID, r.blocks, models.KindBlockDefinition, models.KindSampleBlock,
		res.Delete, rows(res.Update), rows(res.Insert), summary)
	if err != nil {
		return nil, err
	}

	r.logger.Debug().Int64("survey_id", surveyID).Object("summary", summary).Msg("Block definitions reconciled")
	return summary, nil
}

// SyncStratumDefinitions replaces the survey's stratum definitions with
// desired. Memberships of removed stratums are deleted before the stratums.
func (r *Reconciler) SyncStratumDefinitions(ctx context.Context, surveyID int64, desired []models.StratumDefinition) (*Summary, error) {
	scope, err := r.surveys.Scope(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if err := r.validate.StratumDefinitions(scope, desired); err != nil {
		return nil, err
	}

	res := diff.Compute(sortedKeys(scope.Stratums), desired, stratumDefinitionKey)
	rows := func(defs []models.StratumDefinition) []definitionRow {
		out := make([]definitionRow, 0, len(defs))
		for _, d := range defs {
			out = append(out, definitionRow{id: d.SurveyStratumID, name: d.Name, description: d.Description})
		}
		return out
	}

	summary := newSummary()
	err = r.applyDefinitions(ctx, surveyID, r.stratums, models.KindStratumDefinition, models.KindSampleStratum,
		res.Delete, rows(res.Update), rows(res.Insert), summary)
	if err != nil {
		return nil, err
	}

	r.logger.Debug().Int64("survey_id", surveyID).Object("summary", summary).Msg("Stratum definitions reconciled")
	return summary, nil
}

func (r *Reconciler) applyDefinitions(ctx context.Context, surveyID int64, w definitionWriter,
	kind, memberKind models.Kind, remove []int64, update, insert []definitionRow, summary *Summary) error {

	members, err := w.DeleteByDefinitions(ctx, remove)
	if err != nil {
		return err
	}
	summary.deleted(memberKind, len(members))

	removed, err := w.DeleteDefinitions(ctx, surveyID, remove)
	if err != nil {
		return err
	}
	summary.deleted(kind, len(removed))

	for _, d := range update {
		if err := w.UpdateDefinition(ctx, surveyID, *d.id, d.name, d.description); err != nil {
			return err
		}
		summary.updated(kind, 1)
	}
	for _, d := range insert {
		if _, err := w.InsertDefinition(ctx, surveyID, d.name, d.description); err != nil {
			return err
		}
		summary.inserted(kind, 1)
	}
	return nil
}
