// Package reconcile applies desired states to a survey hierarchy inside one
// transaction.
//
// A Reconciler is bound to one storage.Connection. Every operation loads the
// persisted rows, validates the desired state against them, diffs each child
// collection and then writes in dependency order: deletes child to parent
// first, then updates, then inserts parent to child so new parents have keys
// before their children are written. Any error leaves the connection to be
// rolled back by the caller; nothing is retried.
package reconcile

import (
	"github.com/ha1tch/fieldsync/pkg/repository"
	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/ha1tch/fieldsync/pkg/storage"
	"github.com/ha1tch/fieldsync/pkg/validation"
	"github.com/rs/zerolog"
)

// Option configures a Reconciler
type Option func(*Reconciler)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithValidator shares a validator between reconcilers
func WithValidator(v *validation.Validator) Option {
	return func(r *Reconciler) { r.validate = v }
}

// WithParallelSiblings runs independent sibling syncs (block and stratum
// memberships, qualitative and quantitative attributes) concurrently on the
// connection. Only enable it for stores whose StoreInfo reports
// ConcurrentStatements.
func WithParallelSiblings(parallel bool) Option {
	return func(r *Reconciler) { r.parallel = parallel }
}

// WithObservationBatch bounds the rows per observation upsert statement
func WithObservationBatch(rows int) Option {
	return func(r *Reconciler) { r.observationBatch = rows }
}

// Reconciler runs reconciliations on one transaction-scoped connection
type Reconciler struct {
	conn             *storage.Connection
	dialect          sqlb.Dialect
	logger           zerolog.Logger
	validate         *validation.Validator
	parallel         bool
	observationBatch int

	surveys      *repository.SurveyRepository
	techniques   *repository.TechniqueRepository
	sites        *repository.SampleSiteRepository
	methods      *repository.SampleMethodRepository
	periods      *repository.SamplePeriodRepository
	blocks       *repository.SampleBlockRepository
	stratums     *repository.SampleStratumRepository
	attributes   *repository.TechniqueAttributeRepository
	observations *repository.ObservationRepository
}

// New creates a reconciler writing through conn
func New(conn *storage.Connection, opts ...Option) *Reconciler {
	r := &Reconciler{
		conn:    conn,
		dialect: conn.Dialect(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.validate == nil {
		r.validate = validation.New()
	}

	d := r.dialect
	r.surveys = repository.NewSurveyRepository(conn, d)
	r.techniques = repository.NewTechniqueRepository(conn, d)
	r.sites = repository.NewSampleSiteRepository(conn, d)
	r.methods = repository.NewSampleMethodRepository(conn, d)
	r.periods = repository.NewSamplePeriodRepository(conn, d)
	r.blocks = repository.NewSampleBlockRepository(conn, d)
	r.stratums = repository.NewSampleStratumRepository(conn, d)
	r.attributes = repository.NewTechniqueAttributeRepository(conn, d)
	r.observations = repository.NewObservationRepository(conn, d, r.observationBatch)
	return r
}
