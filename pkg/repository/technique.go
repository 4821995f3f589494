package repository

import (
	"context"
	"fmt"

	"github.com/ha1tch/fieldsync/pkg/aggregate"
	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

// TechniqueRepository reads techniques with their attributes
type TechniqueRepository struct {
	base
}

// NewTechniqueRepository creates a technique repository on db
func NewTechniqueRepository(db storage.DB, d sqlb.Dialect) *TechniqueRepository {
	return &TechniqueRepository{base{db: db, dialect: d}}
}

// Get reads one technique with its attributes, or returns storage.ErrNotFound
func (r *TechniqueRepository) Get(ctx context.Context, surveyID, techniqueID int64) (models.Technique, error) {
	techniques, err := aggregate.Techniques(ctx, r.db, r.dialect, surveyID, techniqueID)
	if err != nil {
		return models.Technique{}, err
	}
	if len(techniques) == 0 {
		return models.Technique{}, fmt.Errorf("technique %d in survey %d: %w", techniqueID, surveyID, storage.ErrNotFound)
	}
	return techniques[0], nil
}

// List reads every technique of surveyID
func (r *TechniqueRepository) List(ctx context.Context, surveyID int64) ([]models.Technique, error) {
	return aggregate.Techniques(ctx, r.db, r.dialect, surveyID)
}
