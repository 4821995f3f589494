package repository

import (
	"context"

	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

// junction names the columns of a site <-> definition membership table and of
// the definition table it references
type junction struct {
	kind      string // "block", "stratum"
	table     string
	key       string
	defTable  string
	defKey    string
	siteCol   string
	surveyCol string
}

var (
	blockJunction = junction{
		kind:      "block",
		table:     "survey_sample_block",
		key:       "survey_sample_block_id",
		defTable:  "survey_block",
		defKey:    "survey_block_id",
		siteCol:   "survey_sample_site_id",
		surveyCol: "survey_id",
	}
	stratumJunction = junction{
		kind:      "stratum",
		table:     "survey_sample_stratum",
		key:       "survey_sample_stratum_id",
		defTable:  "survey_stratum",
		defKey:    "survey_stratum_id",
		siteCol:   "survey_sample_site_id",
		surveyCol: "survey_id",
	}
)

// membershipRepo holds the statements shared by block and stratum
// memberships and definitions
type membershipRepo struct {
	base
	j junction
}

func (r membershipRepo) insertMembership(ctx context.Context, siteID, defID int64) (int64, error) {
	query, args := sqlb.InsertInto(r.j.table, r.j.siteCol, r.j.defKey).
		Values(siteID, defID).
		Returning(r.j.key).
		Build(r.dialect)
	return r.returningID(ctx, "insert sample "+r.j.kind, query, args)
}

func (r membershipRepo) deleteMemberships(ctx context.Context, siteID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	stmt := sqlb.DeleteFrom(r.j.table).
		Where(sqlb.And(sqlb.In(r.j.key, ids), sqlb.Eq(r.j.siteCol, siteID))).
		Returning(r.j.key)
	return r.deleteIDs(ctx, "delete sample "+r.j.kind+"s", stmt, len(ids))
}

func (r membershipRepo) deleteMembershipsBy(ctx context.Context, col, op string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args := sqlb.DeleteFrom(r.j.table).
		Where(sqlb.In(col, ids)).
		Returning(r.j.key).
		Build(r.dialect)
	return r.returningIDs(ctx, op, query, args)
}

func (r membershipRepo) insertDefinition(ctx context.Context, surveyID int64, name, description string) (int64, error) {
	query, args := sqlb.InsertInto(r.j.defTable, r.j.surveyCol, "name", "description").
		Values(surveyID, name, description).
		Returning(r.j.defKey).
		Build(r.dialect)
	return r.returningID(ctx, "insert "+r.j.kind+" definition", query, args)
}

func (r membershipRepo) updateDefinition(ctx context.Context, surveyID, id int64, name, description string) error {
	query, args := sqlb.Update(r.j.defTable).
		Set("name", name).
		Set("description", description).
		Where(sqlb.And(sqlb.Eq(r.j.defKey, id), sqlb.Eq(r.j.surveyCol, surveyID))).
		Returning(r.j.defKey).
		Build(r.dialect)
	_, err := r.returningID(ctx, "update "+r.j.kind+" definition", query, args)
	return err
}

func (r membershipRepo) deleteDefinitions(ctx context.Context, surveyID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	stmt := sqlb.DeleteFrom(r.j.defTable).
		Where(sqlb.And(sqlb.In(r.j.defKey, ids), sqlb.Eq(r.j.surveyCol, surveyID))).
		Returning(r.j.defKey)
	return r.deleteIDs(ctx, "delete "+r.j.kind+" definitions", stmt, len(ids))
}

// SampleBlockRepository writes block memberships and block definitions
type SampleBlockRepository struct {
	membershipRepo
}

// NewSampleBlockRepository creates a block repository on db
func NewSampleBlockRepository(db storage.DB, d sqlb.Dialect) *SampleBlockRepository {
	return &SampleBlockRepository{membershipRepo{base: base{db: db, dialect: d}, j: blockJunction}}
}

// Insert links siteID to block definition blockID
func (r *SampleBlockRepository) Insert(ctx context.Context, siteID, blockID int64) (int64, error) {
	return r.insertMembership(ctx, siteID, blockID)
}

// Delete removes memberships of siteID by membership id
func (r *SampleBlockRepository) Delete(ctx context.Context, siteID int64, ids []int64) ([]int64, error) {
	return r.deleteMemberships(ctx, siteID, ids)
}

// DeleteByDefinitions removes every membership referencing the given blocks
func (r *SampleBlockRepository) DeleteByDefinitions(ctx context.Context, blockIDs []int64) ([]int64, error) {
	return r.deleteMembershipsBy(ctx, r.j.defKey, "delete sample blocks of definitions", blockIDs)
}

// DeleteBySites removes every block membership of the given sites
func (r *SampleBlockRepository) DeleteBySites(ctx context.Context, siteIDs []int64) ([]int64, error) {
	return r.deleteMembershipsBy(ctx, r.j.siteCol, "delete sample blocks of sites", siteIDs)
}

// InsertDefinition creates a block definition in surveyID
func (r *SampleBlockRepository) InsertDefinition(ctx context.Context, surveyID int64, name, description string) (int64, error) {
	return r.insertDefinition(ctx, surveyID, name, description)
}

// UpdateDefinition replaces a block definition's name and description
func (r *SampleBlockRepository) UpdateDefinition(ctx context.Context, surveyID, blockID int64, name, description string) error {
	return r.updateDefinition(ctx, surveyID, blockID, name, description)
}

// DeleteDefinitions removes block definitions. Their memberships must
// already be gone.
func (r *SampleBlockRepository) DeleteDefinitions(ctx context.Context, surveyID int64, ids []int64) ([]int64, error) {
	return r.deleteDefinitions(ctx, surveyID, ids)
}

// SampleStratumRepository writes stratum memberships and stratum definitions
type SampleStratumRepository struct {
	membershipRepo
}

// NewSampleStratumRepository creates a stratum repository on db
func NewSampleStratumRepository(db storage.DB, d sqlb.Dialect) *SampleStratumRepository {
	return &SampleStratumRepository{membershipRepo{base: base{db: db, dialect: d}, j: stratumJunction}}
}

// Insert links siteID to stratum definition stratumID
func (r *SampleStratumRepository) Insert(ctx context.Context, siteID, stratumID int64) (int64, error) {
	return r.insertMembership(ctx, siteID, stratumID)
}

// Delete removes memberships of siteID by membership id
func (r *SampleStratumRepository) Delete(ctx context.Context, siteID int64, ids []int64) ([]int64, error) {
	return r.deleteMemberships(ctx, siteID, ids)
}

// DeleteByDefinitions removes every membership referencing the given strata
func (r *SampleStratumRepository) DeleteByDefinitions(ctx context.Context, stratumIDs []int64) ([]int64, error) {
	return r.deleteMembershipsBy(ctx, r.j.defKey, "delete sample stratums of definitions", stratumIDs)
}

// DeleteBySites removes every stratum membership of the given sites
func (r *SampleStratumRepository) DeleteBySites(ctx context.Context, siteIDs []int64) ([]int64, error) {
	return r.deleteMembershipsBy(ctx, r.j.siteCol, "delete sample stratums of sites", siteIDs)
}

// InsertDefinition creates a stratum definition in surveyID
func (r *SampleStratumRepository) InsertDefinition(ctx context.Context, surveyID int64, name, description string) (int64, error) {
	return r.insertDefinition(ctx, surveyID, name, description)
}

// UpdateDefinition replaces a stratum definition's name and description
func (r *SampleStratumRepository) UpdateDefinition(ctx context.Context, surveyID, stratumID int64, name, description string) error {
	return r.updateDefinition(ctx, surveyID, stratumID, name, description)
}

// DeleteDefinitions removes stratum definitions. Their memberships must
// already be gone.
func (r *SampleStratumRepository) DeleteDefinitions(ctx context.Context, surveyID int64, ids []int64) ([]int64, error) {
	return r.deleteDefinitions(ctx, surveyID, ids)
}
