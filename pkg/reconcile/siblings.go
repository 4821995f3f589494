package reconcile

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// siblings runs sub-syncs that share no rows. With parallel set they run
// concurrently on the connection; otherwise in submission order, skipping
// the rest after the first failure. Either way Wait is the single join and
// returns the first error.
type siblings struct {
	ctx      context.Context
	group    *errgroup.Group
	parallel bool
	err      error
}

func (r *Reconciler) siblings(ctx context.Context) *siblings {
	s := &siblings{ctx: ctx, parallel: r.parallel}
	if r.parallel {
		s.group, s.ctx = errgroup.WithContext(ctx)
	}
	return s
}

func (s *siblings) Go(fn func(ctx context.Context) error) {
	if s.parallel {
		s.group.Go(func() error { return fn(s.ctx) })
		return
	}
	if s.err == nil {
		s.err = fn(s.ctx)
	}
}

func (s *siblings) Wait() error {
	if s.parallel {
		return s.group.Wait()
	}
	return s.err
}
