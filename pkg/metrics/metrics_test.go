package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ha1tch/fieldsync/pkg/metrics"
	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/ha1tch/fieldsync/pkg/reconcile"
	"github.com/ha1tch/fieldsync/pkg/storage"
	"github.com/ha1tch/fieldsync/pkg/storage/storagetest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockSummary produces a real summary by syncing two block definitions
func blockSummary(t *testing.T) *reconcile.Summary {
	t.Helper()

	store := storagetest.NewSQLite(t)
	fx := storagetest.NewFixture(t, store)
	survey := fx.Survey("S")
	fx.Block(survey, "Old")
	ctx := context.Background()

	var summary *reconcile.Summary
	err := storage.WithTransaction(ctx, store, func(conn *storage.Connection) error {
		var err error
		summary, err = reconcile.New(conn).SyncBlockDefinitions(ctx, survey, []models.BlockDefinition{
			{Name: "A"}, {Name: "B"},
		})
		return err
	})
	require.NoError(t, err)
	return summary
}

func TestObserveSync(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveSync("sync_block_definitions", 5*time.Millisecond, blockSummary(t), nil)

	assert.Equal(t, 2.0, counterValue(t, reg, "fieldsync_rows_written_total", "block_definition", "insert"))
	assert.Equal(t, 1.0, counterValue(t, reg, "fieldsync_rows_written_total", "block_definition", "delete"))
	assert.Equal(t, 1, gatherCount(t, reg, "fieldsync_sync_duration_seconds"))
}

func TestObserveSync_Error(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveSync("sync_site", time.Millisecond, nil, errors.New("boom"))

	assert.Equal(t, 1, gatherCount(t, reg, "fieldsync_sync_errors_total"))
	assert.Equal(t, 0, gatherCount(t, reg, "fieldsync_rows_written_total"))
}

func TestCacheRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.CacheMiss("sample_sites")
	m.CacheHit("sample_sites")
	m.CacheHit("sample_sites")

	assert.Equal(t, 2, gatherCount(t, reg, "fieldsync_cache_requests_total"))
	assert.Equal(t, 2.0, counterValue(t, reg, "fieldsync_cache_requests_total", "sample_sites", "hit"))
}

// counterValue returns the value of the counter series name{labels...},
// label values given in label-name order
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	series:
		for _, metric := range family.GetMetric() {
			pairs := metric.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			for i, pair := range pairs {
				if pair.GetValue() != labels[i] {
					continue series
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("no %s series with labels %v", name, labels)
	return 0
}

func gatherCount(t *testing.T, reg *prometheus.Registry, name string) int {
	t.Helper()

	n, err := testutil.GatherAndCount(reg, name)
	require.NoError(t, err)
	return n
}
