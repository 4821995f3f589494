package reconcile

import (
	"context"
	"sort"

	"github.com/ha1tch/fieldsync/pkg/aggregate"
	"github.com/ha1tch/fieldsync/pkg/diff"
	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/storage"
)

var (
	methodKey  = diff.PtrKey(func(m models.SampleMethod) *int64 { return m.SurveySampleMethodID })
	periodKey  = diff.PtrKey(func(p models.SamplePeriod) *int64 { return p.SurveySamplePeriodID })
	blockKey   = diff.PtrKey(func(b models.SampleBlock) *int64 { return b.SurveySampleBlockID })
	stratumKey = diff.PtrKey(func(s models.SampleStratum) *int64 { return s.SurveySampleStratumID })
)

// methodPlan is the period diff of a method kept by the method diff
type methodPlan struct {
	method  models.SampleMethod
	periods diff.Result[models.SamplePeriod, int64]
}

// sitePlan holds every diff of one site subtree. site is nil when the site
// row was just inserted; orphanedMethods are removed methods whose periods
// go first.
type sitePlan struct {
	surveyID        int64
	siteID          int64
	site            *models.SampleSite
	methods         diff.Result[models.SampleMethod, int64]
	kept            []methodPlan
	blocks          diff.Result[models.SampleBlock, int64]
	stratums        diff.Result[models.SampleStratum, int64]
	orphanedMethods []int64
}

// SyncSite makes the persisted subtree of the site desired names match
// desired: the site's own columns, its methods and their periods, and its
// block and stratum memberships.
func (r *Reconciler) SyncSite(ctx context.Context, surveyID int64, desired models.SampleSite) (*Summary, error) {
	if desired.SurveySampleSiteID == nil {
		return nil, storage.NewValidationError(string(models.KindSampleSite), "site id is required")
	}
	siteID := *desired.SurveySampleSiteID

	existing, err := aggregate.SampleSite(ctx, r.conn, r.dialect, surveyID, siteID)
	if err != nil {
		return nil, err
	}
	scope, err := r.surveys.Scope(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if err := r.validate.Site(scope, &existing, desired); err != nil {
		return nil, err
	}

	summary := newSummary()
	plan := r.planSite(siteID, existing, desired)
	plan.site = &desired
	plan.surveyID = surveyID
	if err := r.applySite(ctx, plan, summary); err != nil {
		return nil, err
	}

	r.logger.Debug().
		Int64("survey_id", surveyID).
		Int64("site_id", siteID).
		Object("summary", summary).
		Msg("Site reconciled")
	return summary, nil
}

// CreateSite inserts a site with its complete subtree and returns the new id
func (r *Reconciler) CreateSite(ctx context.Context, surveyID int64, desired models.SampleSite) (int64, *Summary, error) {
	scope, err := r.surveys.Scope(ctx, surveyID)
	if err != nil {
		return 0, nil, err
	}
	if err := r.validate.Site(scope, nil, desired); err != nil {
		return 0, nil, err
	}

	summary := newSummary()
	site, err := r.sites.Insert(ctx, surveyID, desired)
	if err != nil {
		return 0, nil, err
	}
	summary.inserted(models.KindSampleSite, 1)
	siteID := *site.SurveySampleSiteID

	plan := r.planSite(siteID, models.SampleSite{}, desired)
	if err := r.applySite(ctx, plan, summary); err != nil {
		return 0, nil, err
	}

	r.logger.Debug().
		Int64("survey_id", surveyID).
		Int64("site_id", siteID).
		Object("summary", summary).
		Msg("Site created")
	return siteID, summary, nil
}

// DeleteSites removes sites with everything under them: periods, methods,
// then memberships, then the sites
func (r *Reconciler) DeleteSites(ctx context.Context, surveyID int64, siteIDs []int64) (*Summary, error) {
	summary := newSummary()
	if len(siteIDs) == 0 {
		return summary, nil
	}
	siteIDs, dups := uniqueIDs(siteIDs)
	if len(dups) > 0 {
		r.logger.Warn().Ints64("site_ids", dups).Msg("Site ids repeated in delete request")
	}

	scope, err := r.surveys.Scope(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if err := r.validate.Sites(scope, siteIDs); err != nil {
		return nil, err
	}

	periods, err := r.periods.DeleteBySites(ctx, siteIDs)
	if err != nil {
		return nil, err
	}
	summary.deleted(models.KindSamplePeriod, len(periods))

	methods, err := r.methods.DeleteBySites(ctx, siteIDs)
	if err != nil {
		return nil, err
	}
	summary.deleted(models.KindSampleMethod, len(methods))

	group := r.siblings(ctx)
	group.Go(func(ctx context.Context) error {
		ids, err := r.blocks.DeleteBySites(ctx, siteIDs)
		summary.deleted(models.KindSampleBlock, len(ids))
		return err
	})
	group.Go(func(ctx context.Context) error {
		ids, err := r.stratums.DeleteBySites(ctx, siteIDs)
		summary.deleted(models.KindSampleStratum, len(ids))
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sites, err := r.sites.Delete(ctx, surveyID, siteIDs)
	if err != nil {
		return nil, err
	}
	summary.deleted(models.KindSampleSite, len(sites))

	r.logger.Debug().
		Int64("survey_id", surveyID).
		Ints64("site_ids", siteIDs).
		Object("summary", summary).
		Msg("Sites deleted")
	return summary, nil
}

// planSite diffs desired against existing. existing is the zero site when the
// site is new.
func (r *Reconciler) planSite(siteID int64, existing, desired models.SampleSite) sitePlan {
	r.warnDuplicates(siteID, desired)

	plan := sitePlan{siteID: siteID}

	existingMethods := make(map[int64]models.SampleMethod, len(existing.SampleMethods))
	methodIDs := make([]int64, 0, len(existing.SampleMethods))
	for _, m := range existing.SampleMethods {
		id := models.Value(m.SurveySampleMethodID)
		existingMethods[id] = m
		methodIDs = append(methodIDs, id)
	}
	plan.methods = diff.Compute(methodIDs, desired.SampleMethods, methodKey)
	plan.orphanedMethods = plan.methods.Delete

	for _, m := range plan.methods.Update {
		current := existingMethods[*m.SurveySampleMethodID]
		periodIDs := make([]int64, 0, len(current.SamplePeriods))
		for _, p := range current.SamplePeriods {
			periodIDs = append(periodIDs, models.Value(p.SurveySamplePeriodID))
		}
		plan.kept = append(plan.kept, methodPlan{
			method:  m,
			periods: diff.Compute(periodIDs, m.SamplePeriods, periodKey),
		})
	}

	plan.blocks = diffBlocks(existing.SampleBlocks, desired.SampleBlocks)
	plan.stratums = diffStratums(existing.SampleStratums, desired.SampleStratums)
	return plan
}

// diffBlocks keys memberships by definition: a desired membership naming a
// block the site already belongs to keeps the existing row. Membership rows
// have no mutable columns, so the update set is dropped.
func diffBlocks(existing, desired []models.SampleBlock) diff.Result[models.SampleBlock, int64] {
	byDefinition := make(map[int64]int64, len(existing))
	ids := make([]int64, 0, len(existing))
	for _, b := range existing {
		byDefinition[b.SurveyBlockID] = models.Value(b.SurveySampleBlockID)
		ids = append(ids, models.Value(b.SurveySampleBlockID))
	}

	normalized := make([]models.SampleBlock, 0, len(desired))
	seen := make(map[int64]bool, len(desired))
	for _, b := range desired {
		if seen[b.SurveyBlockID] {
			continue
		}
		seen[b.SurveyBlockID] = true
		b.SurveySampleBlockID = nil
		if id, ok := byDefinition[b.SurveyBlockID]; ok {
			b.SurveySampleBlockID = models.ID(id)
		}
		normalized = append(normalized, b)
	}

	res := diff.Compute(ids, normalized, blockKey)
	res.Update = nil
	return res
}

// diffStratums is diffBlocks for stratum memberships
func diffStratums(existing, desired []models.SampleStratum) diff.Result[models.SampleStratum, int64] {
	byDefinition := make(map[int64]int64, len(existing))
	ids := make([]int64, 0, len(existing))
	for _, s := range existing {
		byDefinition[s.SurveyStratumID] = models.Value(s.SurveySampleStratumID)
		ids = append(ids, models.Value(s.SurveySampleStratumID))
	}

	normalized := make([]models.SampleStratum, 0, len(desired))
	seen := make(map[int64]bool, len(desired))
	for _, s := range desired {
		if seen[s.SurveyStratumID] {
			continue
		}
		seen[s.SurveyStratumID] = true
		s.SurveySampleStratumID = nil
		if id, ok := byDefinition[s.SurveyStratumID]; ok {
			s.SurveySampleStratumID = models.ID(id)
		}
		normalized = append(normalized, s)
	}

	res := diff.Compute(ids, normalized, stratumKey)
	res.Update = nil
	return res
}

func (r *Reconciler) warnDuplicates(siteID int64, desired models.SampleSite) {
	if dups := diff.Duplicates(desired.SampleMethods, methodKey); len(dups) > 0 {
		r.logger.Warn().Int64("site_id", siteID).Ints64("method_ids", dups).
			Msg("Duplicate method ids in desired state, last occurrence wins")
	}
	for _, m := range desired.SampleMethods {
		if dups := diff.Duplicates(m.SamplePeriods, periodKey); len(dups) > 0 {
			r.logger.Warn().Int64("site_id", siteID).Ints64("period_ids", dups).
				Msg("Duplicate period ids in desired state, last occurrence wins")
		}
	}
}

// applySite writes a plan: deletes child to parent, then updates and
// inserts parent to child
func (r *Reconciler) applySite(ctx context.Context, plan sitePlan, summary *Summary) error {
	// periods of methods being removed
	orphans, err := r.periods.DeleteByMethods(ctx, plan.orphanedMethods)
	if err != nil {
		return err
	}
	summary.deleted(models.KindSamplePeriod, len(orphans))

	// periods dropped from kept methods
	var dropped []int64
	for _, mp := range plan.kept {
		dropped = append(dropped, mp.periods.Delete...)
	}
	removed, err := r.periods.Delete(ctx, dropped)
	if err != nil {
		return err
	}
	summary.deleted(models.KindSamplePeriod, len(removed))

	methods, err := r.methods.Delete(ctx, plan.siteID, plan.methods.Delete)
	if err != nil {
		return err
	}
	summary.deleted(models.KindSampleMethod, len(methods))

	group := r.siblings(ctx)
	group.Go(func(ctx context.Context) error {
		ids, err := r.blocks.Delete(ctx, plan.siteID, plan.blocks.Delete)
		summary.deleted(models.KindSampleBlock, len(ids))
		return err
	})
	group.Go(func(ctx context.Context) error {
		ids, err := r.stratums.Delete(ctx, plan.siteID, plan.stratums.Delete)
		summary.deleted(models.KindSampleStratum, len(ids))
		return err
	})
	if err := group.Wait(); err != nil {
		return err
	}

	if plan.site != nil {
		if _, err := r.sites.Update(ctx, plan.surveyID, *plan.site); err != nil {
			return err
		}
		summary.updated(models.KindSampleSite, 1)
	}
	for _, mp := range plan.kept {
		if _, err := r.methods.Update(ctx, plan.siteID, mp.method); err != nil {
			return err
		}
		summary.updated(models.KindSampleMethod, 1)

		methodID := *mp.method.SurveySampleMethodID
		for _, p := range mp.periods.Update {
			if _, err := r.periods.Update(ctx, methodID, p); err != nil {
				return err
			}
			summary.updated(models.KindSamplePeriod, 1)
		}
	}

	for _, m := range plan.methods.Insert {
		inserted, err := r.methods.Insert(ctx, plan.siteID, m)
		if err != nil {
			return err
		}
		summary.inserted(models.KindSampleMethod, 1)

		if err := r.insertPeriods(ctx, *inserted.SurveySampleMethodID, m.SamplePeriods, summary); err != nil {
			return err
		}
	}
	for _, mp := range plan.kept {
		if err := r.insertPeriods(ctx, *mp.method.SurveySampleMethodID, mp.periods.Insert, summary); err != nil {
			return err
		}
	}

	group = r.siblings(ctx)
	group.Go(func(ctx context.Context) error {
		for _, b := range plan.blocks.Insert {
			if _, err := r.blocks.Insert(ctx, plan.siteID, b.SurveyBlockID); err != nil {
				return err
			}
			summary.inserted(models.KindSampleBlock, 1)
		}
		return nil
	})
	group.Go(func(ctx context.Context) error {
		for _, s := range plan.stratums.Insert {
			if _, err := r.stratums.Insert(ctx, plan.siteID, s.SurveyStratumID); err != nil {
				return err
			}
			summary.inserted(models.KindSampleStratum, 1)
		}
		return nil
	})
	return group.Wait()
}

func (r *Reconciler) insertPeriods(ctx context.Context, methodID int64, periods []models.SamplePeriod, summary *Summary) error {
	for _, p := range periods {
		if _, err := r.periods.Insert(ctx, methodID, p); err != nil {
			return err
		}
		summary.inserted(models.KindSamplePeriod, 1)
	}
	return nil
}

// sortedKeys returns the keys of a survey scope set in ascending order
func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// uniqueIDs drops repeated ids, keeping first occurrences in order, and
// returns the ids that were repeated
func uniqueIDs(ids []int64) (unique, dups []int64) {
	seen := make(map[int64]bool, len(ids))
	unique = make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			dups = append(dups, id)
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique, dups
}
