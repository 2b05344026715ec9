package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/treematch/pkg/observability"
)

func setupTestMeter(t *testing.T) (*observability.MatchMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	mm, err := observability.NewMatchMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return mm, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func TestMatchMetrics_RecordMatch(t *testing.T) {
	t.Parallel()

	mm, reader := setupTestMeter(t)

	mm.RecordMatch(context.Background(), observability.MatchRecord{
		Stage:     "subtree",
		Status:    observability.StatusOK,
		Duration:  5 * time.Millisecond,
		Mapped:    12,
		Ambiguous: 2,
	})

	rm := collectMetrics(t, reader)

	total := findMetric(rm, "treematch.matches.total")
	require.NotNil(t, total)

	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)

	require.NotNil(t, findMetric(rm, "treematch.match.duration.seconds"))

	mapped := findMetric(rm, "treematch.match.mapped.nodes")
	require.NotNil(t, mapped)

	hist, ok := mapped.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, int64(12), hist.DataPoints[0].Sum)

	assert.NotNil(t, findMetric(rm, "treematch.match.ambiguous.pairs"))
	assert.Nil(t, findMetric(rm, "treematch.match.errors.total"))
}

func TestMatchMetrics_RecordError(t *testing.T) {
	t.Parallel()

	mm, reader := setupTestMeter(t)

	mm.RecordMatch(context.Background(), observability.MatchRecord{
		Stage:  "subtree",
		Status: observability.StatusError,
	})

	rm := collectMetrics(t, reader)

	require.NotNil(t, findMetric(rm, "treematch.match.errors.total"))
	assert.Nil(t, findMetric(rm, "treematch.match.mapped.nodes"))
}

func TestMatchMetrics_CachedSkipsAmbiguity(t *testing.T) {
	t.Parallel()

	mm, reader := setupTestMeter(t)

	mm.RecordMatch(context.Background(), observability.MatchRecord{
		Stage:  "subtree",
		Status: observability.StatusCached,
		Mapped: 4,
	})

	rm := collectMetrics(t, reader)

	assert.NotNil(t, findMetric(rm, "treematch.match.mapped.nodes"))
	assert.Nil(t, findMetric(rm, "treematch.match.ambiguous.pairs"))
}

func TestMatchMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	mm, reader := setupTestMeter(t)

	done := mm.TrackInflight(context.Background(), "subtree")

	inflight := findMetric(collectMetrics(t, reader), "treematch.matches.inflight")
	require.NotNil(t, inflight)

	sum, ok := inflight.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)

	done()

	sum, ok = findMetric(collectMetrics(t, reader), "treematch.matches.inflight").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(0), sum.DataPoints[0].Value)
}

func TestNewMatchMetrics_NoopMeter(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	mm, err := observability.NewMatchMetrics(providers.Meter)
	require.NoError(t, err)

	mm.RecordMatch(context.Background(), observability.MatchRecord{Stage: "subtree", Status: observability.StatusOK})
}
