package repository

import (
	"context"

	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

const (
	qualitativeTable  = "method_technique_attribute_qualitative"
	qualitativeKey    = "method_technique_attribute_qualitative_id"
	quantitativeTable = "method_technique_attribute_quantitative"
	quantitativeKey   = "method_technique_attribute_quantitative_id"
)

// TechniqueAttributeRepository writes the qualitative and quantitative
// attributes of a technique
type TechniqueAttributeRepository struct {
	base
}

// NewTechniqueAttributeRepository creates an attribute repository on db
func NewTechniqueAttributeRepository(db storage.DB, d sqlb.Dialect) *TechniqueAttributeRepository {
	return &TechniqueAttributeRepository{base{db: db, dialect: d}}
}

// InsertQualitative attaches a qualitative attribute to techniqueID
func (r *TechniqueAttributeRepository) InsertQualitative(ctx context.Context, techniqueID int64, a models.QualitativeAttribute) (models.QualitativeAttribute, error) {
	query, args := sqlb.InsertInto(qualitativeTable,
		"method_technique_id", "method_lookup_attribute_qualitative_id", "method_lookup_attribute_qualitative_option_id").
		Values(techniqueID, a.MethodLookupAttributeQualitativeID, a.MethodLookupAttributeQualitativeOptionID).
		Returning(qualitativeKey).
		Build(r.dialect)

	id, err := r.returningID(ctx, "insert qualitative attribute", query, args)
	if err != nil {
		return models.QualitativeAttribute{}, err
	}
	a.MethodTechniqueAttributeQualitativeID = models.ID(id)
	return a, nil
}

// UpdateQualitative replaces a qualitative attribute of techniqueID
func (r *TechniqueAttributeRepository) UpdateQualitative(ctx context.Context, techniqueID int64, a models.QualitativeAttribute) (models.QualitativeAttribute, error) {
	query, args := sqlb.Update(qualitativeTable).
		Set("method_lookup_attribute_qualitative_id", a.MethodLookupAttributeQualitativeID).
		Set("method_lookup_attribute_qualitative_option_id", a.MethodLookupAttributeQualitativeOptionID).
		Where(sqlb.And(
			sqlb.Eq(qualitativeKey, models.Value(a.MethodTechniqueAttributeQualitativeID)),
			sqlb.Eq("method_technique_id", techniqueID),
		)).
		Returning(qualitativeKey).
		Build(r.dialect)

	if _, err := r.returningID(ctx, "update qualitative attribute", query, args); err != nil {
		return models.QualitativeAttribute{}, err
	}
	return a, nil
}

// DeleteQualitative removes qualitative attributes of techniqueID
func (r *TechniqueAttributeRepository) DeleteQualitative(ctx context.Context, techniqueID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	stmt := sqlb.DeleteFrom(qualitativeTable).
		Where(sqlb.And(sqlb.In(qualitativeKey, ids), sqlb.Eq("method_technique_id", techniqueID))).
		Returning(qualitativeKey)
	return r.deleteIDs(ctx, "delete qualitative attributes", stmt, len(ids))
}

// InsertQuantitative attaches a quantitative attribute to techniqueID
func (r *TechniqueAttributeRepository) InsertQuantitative(ctx context.Context, techniqueID int64, a models.QuantitativeAttribute) (models.QuantitativeAttribute, error) {
	query, args := sqlb.InsertInto(quantitativeTable,
		"method_technique_id", "method_lookup_attribute_quantitative_id", "value").
		Values(techniqueID, a.MethodLookupAttributeQuantitativeID, a.Value).
		Returning(quantitativeKey).
		Build(r.dialect)

	id, err := r.returningID(ctx, "insert quantitative attribute", query, args)
	if err != nil {
		return models.QuantitativeAttribute{}, err
	}
	a.MethodTechniqueAttributeQuantitativeID = models.ID(id)
	return a, nil
}

// UpdateQuantitative replaces a quantitative attribute of techniqueID
func (r *TechniqueAttributeRepository) UpdateQuantitative(ctx context.Context, techniqueID int64, a models.QuantitativeAttribute) (models.QuantitativeAttribute, error) {
	query, args := sqlb.Update(quantitativeTable).
		Set("method_lookup_attribute_quantitative_id", a.MethodLookupAttributeQuantitativeID).
		Set("value", a.Value).
		Where(sqlb.And(
			sqlb.Eq(quantitativeKey, models.Value(a.MethodTechniqueAttributeQuantitativeID)),
			sqlb.Eq("method_technique_id", techniqueID),
		)).
		Returning(quantitativeKey).
		Build(r.dialect)

	if _, err := r.returningID(ctx, "update quantitative attribute", query, args); err != nil {
		return models.QuantitativeAttribute{}, err
	}
	return a, nil
}

// DeleteQuantitative removes quantitative attributes of techniqueID
func (r *TechniqueAttributeRepository) DeleteQuantitative(ctx context.Context, techniqueID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	stmt := sqlb.DeleteFrom(quantitativeTable).
		Where(sqlb.And(sqlb.In(quantitativeKey, ids), sqlb.Eq("method_technique_id", techniqueID))).
		Returning(quantitativeKey)
	return r.deleteIDs(ctx, "delete quantitative attributes", stmt, len(ids))
}
