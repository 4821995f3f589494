package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSiblings_SequentialStopsAtFirstError(t *testing.T) {
	r := &Reconciler{}
	boom := errors.New("boom")
	var ran []string

	group := r.siblings(context.Background())
	group.Go(func(context.Context) error { ran = append(ran, "blocks"); return boom })
	group.Go(func(context.Context) error { ran = append(ran, "stratums"); return nil })

	assert.ErrorIs(t, group.Wait(), boom)
	assert.Equal(t, []string{"blocks"}, ran)
}

func TestSiblings_ParallelJoinsAll(t *testing.T) {
	r := &Reconciler{parallel: true}
	var n atomic.Int32

	group := r.siblings(context.Background())
	for i := 0; i < 4; i++ {
		group.Go(func(context.Context) error { n.Add(1); return nil })
	}

	assert.NoError(t, group.Wait())
	assert.Equal(t, int32(4), n.Load())
}

func TestSiblings_ParallelFirstErrorCancels(t *testing.T) {
	r := &Reconciler{parallel: true}
	boom := errors.New("boom")

	group := r.siblings(context.Background())
	group.Go(func(context.Context) error { return boom })
	group.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, group.Wait(), boom)
}
