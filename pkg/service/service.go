// Package service runs reconciliations and read-model queries against a
// store, one transaction per write, with caching and metrics around them.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ha1tch/fieldsync/pkg/aggregate"
	"github.com/ha1tch/fieldsync/pkg/cache"
	"github.com/ha1tch/fieldsync/pkg/config"
	"github.com/ha1tch/fieldsync/pkg/metrics"
	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/reconcile"
	"github.com/ha1tch/fieldsync/pkg/storage"
	"github.com/ha1tch/fieldsync/pkg/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Option configures a SurveyService
type Option func(*SurveyService)

// WithCache sets the read-model cache
func WithCache(c cache.Cache) Option {
	return func(s *SurveyService) { s.cache = c }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SurveyService) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *SurveyService) { s.logger = logger }
}

// SurveyService is the entry point for reading and reconciling surveys
type SurveyService struct {
	store    storage.Store
	cfg      *config.Config
	cache    cache.Cache
	metrics  *metrics.Metrics
	validate *validation.Validator
	logger   zerolog.Logger
	parallel bool
}

// New creates a survey service on store. Sibling syncs run in parallel only
// when cfg asks for it and the store can interleave statements on one
// transaction.
func New(store storage.Store, cfg *config.Config, opts ...Option) *SurveyService {
	s := &SurveyService{
		store:    store,
		cfg:      cfg,
		cache:    cache.Nop{},
		validate: validation.New(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	s.parallel = cfg.ParallelSiblings && store.Info().ConcurrentStatements
	return s
}

// =============================================================================
// Reads
// =============================================================================

// GetSampleSites returns the site subtrees of a survey, optionally limited to
// siteIDs
func (s *SurveyService) GetSampleSites(ctx context.Context, surveyID int64, siteIDs ...int64) ([]models.SampleSite, error) {
	return cached(ctx, s, surveyID, "sample_sites", siteIDs, func() ([]models.SampleSite, error) {
		return aggregate.SampleSites(ctx, s.store.Reader(), s.store.Dialect(), surveyID, siteIDs...)
	})
}

// GetTechniques returns the techniques of a survey with their attributes
func (s *SurveyService) GetTechniques(ctx context.Context, surveyID int64, techniqueIDs ...int64) ([]models.Technique, error) {
	return cached(ctx, s, surveyID, "techniques", techniqueIDs, func() ([]models.Technique, error) {
		return aggregate.Techniques(ctx, s.store.Reader(), s.store.Dialect(), surveyID, techniqueIDs...)
	})
}

// GetBlockDefinitions returns the block definitions of a survey with their
// membership counts
func (s *SurveyService) GetBlockDefinitions(ctx context.Context, surveyID int64) ([]models.BlockDefinition, error) {
	return cached(ctx, s, surveyID, "block_definitions", nil, func() ([]models.BlockDefinition, error) {
		return aggregate.BlockDefinitions(ctx, s.store.Reader(), s.store.Dialect(), surveyID)
	})
}

// GetStratumDefinitions returns the stratum definitions of a survey with
// their membership counts
func (s *SurveyService) GetStratumDefinitions(ctx context.Context, surveyID int64) ([]models.StratumDefinition, error) {
	return cached(ctx, s, surveyID, "stratum_definitions", nil, func() ([]models.StratumDefinition, error) {
		return aggregate.StratumDefinitions(ctx, s.store.Reader(), s.store.Dialect(), surveyID)
	})
}

func idsKey(ids []int64) string {
	if len(ids) == 0 {
		return "all"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// cached serves query from the cache or runs load and stores its result.
// Cache failures are logged and fall through to the store.
func cached[T any](ctx context.Context, s *SurveyService, surveyID int64, query string, ids []int64, load func() (T, error)) (T, error) {
	key := cache.Key(surveyID, query, idsKey(ids))

	data, err := s.cache.Get(ctx, key)
	if err == nil {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			s.metrics.CacheHit(query)
			return v, nil
		}
		s.logger.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	}
	s.metrics.CacheMiss(query)

	v, err := load()
	if err != nil {
		return v, err
	}

	if data, err := json.Marshal(v); err == nil {
		if err := s.cache.Set(ctx, key, data, s.cfg.CacheDuration()); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		}
	}
	return v, nil
}

// =============================================================================
// Writes
// =============================================================================

// SyncSite reconciles one site subtree
func (s *SurveyService) SyncSite(ctx context.Context, surveyID int64, desired models.SampleSite) (*reconcile.Summary, error) {
	return s.write(ctx, "sync_site", surveyID, func(r *reconcile.Reconciler) (*reconcile.Summary, error) {
		return r.SyncSite(ctx, surveyID, desired)
	})
}

// CreateSites inserts sites with their subtrees in one transaction and
// returns their ids in input order
func (s *SurveyService) CreateSites(ctx context.Context, surveyID int64, sites []models.SampleSite) ([]int64, *reconcile.Summary, error) {
	ids := make([]int64, 0, len(sites))
	summary, err := s.write(ctx, "create_sites", surveyID, func(r *reconcile.Reconciler) (*reconcile.Summary, error) {
		total := reconcile.NewSummary()
		for _, site := range sites {
			id, summary, err := r.CreateSite(ctx, surveyID, site)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
			total.Merge(summary)
		}
		return total, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return ids, summary, nil
}

// DeleteSites removes sites with their subtrees
func (s *SurveyService) DeleteSites(ctx context.Context, surveyID int64, siteIDs []int64) (*reconcile.Summary, error) {
	return s.write(ctx, "delete_sites", surveyID, func(r *reconcile.Reconciler) (*reconcile.Summary, error) {
		return r.DeleteSites(ctx, surveyID, siteIDs)
	})
}

// SyncBlockDefinitions replaces the block definitions of a survey
func (s *SurveyService) SyncBlockDefinitions(ctx context.Context, surveyID int64, desired []models.BlockDefinition) (*reconcile.Summary, error) {
	return s.write(ctx, "sync_block_definitions", surveyID, func(r *reconcile.Reconciler) (*reconcile.Summary, error) {
		return r.SyncBlockDefinitions(ctx, surveyID, desired)
	})
}

// SyncStratumDefinitions replaces the stratum definitions of a survey
func (s *SurveyService) SyncStratumDefinitions(ctx context.Context, surveyID int64, desired []models.StratumDefinition) (*reconcile.Summary, error) {
	return s.write(ctx, "sync_stratum_definitions", surveyID, func(r *reconcile.Reconciler) (*reconcile.Summary, error) {
		return r.SyncStratumDefinitions(ctx, surveyID, desired)
	})
}

// SyncTechniqueAttributes replaces the attributes of a technique
func (s *SurveyService) SyncTechniqueAttributes(ctx context.Context, surveyID, techniqueID int64, desired models.TechniqueAttributes) (*reconcile.Summary, error) {
	return s.write(ctx, "sync_technique_attributes", surveyID, func(r *reconcile.Reconciler) (*reconcile.Summary, error) {
		return r.SyncTechniqueAttributes(ctx, surveyID, techniqueID, desired)
	})
}

// SyncObservations replaces the observations of a survey
func (s *SurveyService) SyncObservations(ctx context.Context, surveyID int64, rows []models.Observation) (*reconcile.Summary, error) {
	return s.write(ctx, "sync_observations", surveyID, func(r *reconcile.Reconciler) (*reconcile.Summary, error) {
		return r.SyncObservations(ctx, surveyID, rows)
	})
}

// write runs fn on a fresh reconciler in one transaction. The survey's
// cached read models are dropped once the transaction commits.
func (s *SurveyService) write(ctx context.Context, op string, surveyID int64, fn func(*reconcile.Reconciler) (*reconcile.Summary, error)) (*reconcile.Summary, error) {
	logger := s.logger.With().
		Str("request_id", uuid.NewString()).
		Str("op", op).
		Int64("survey_id", surveyID).
		Logger()

	start := time.Now()
	var summary *reconcile.Summary
	err := storage.WithTransaction(ctx, s.store, func(conn *storage.Connection) error {
		r := reconcile.New(conn,
			reconcile.WithLogger(logger),
			reconcile.WithValidator(s.validate),
			reconcile.WithParallelSiblings(s.parallel),
			reconcile.WithObservationBatch(s.cfg.ObservationBatch),
		)
		var err error
		summary, err = fn(r)
		return err
	})
	took := time.Since(start)
	s.metrics.ObserveSync(op, took, summary, err)

	if err != nil {
		var ve *storage.ValidationError
		if errors.As(err, &ve) {
			logger.Warn().Err(err).Msg("Rejected desired state")
		} else {
			logger.Error().Err(err).Dur("took", took).Msg("Reconciliation rolled back")
		}
		return nil, err
	}

	if err := s.cache.DeletePrefix(ctx, cache.SurveyPrefix(surveyID)); err != nil {
		logger.Warn().Err(err).Msg("Cache invalidation failed")
	}

	logger.Info().Dur("took", took).Object("summary", summary).Msg("Reconciliation committed")
	return summary, nil
}
