package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricMatchesTotal   = "treematch.matches.total"
	metricMatchDuration  = "treematch.match.duration.seconds"
	metricMatchErrors    = "treematch.match.errors.total"
	metricMappedNodes    = "treematch.match.mapped.nodes"
	metricInflightMatch  = "treematch.matches.inflight"
	metricAmbiguousPairs = "treematch.match.ambiguous.pairs"

	attrStage  = "stage"
	attrStatus = "status"

	// StatusOK marks a successful match.
	StatusOK = "ok"
	// StatusError marks a failed match.
	StatusError = "error"
	// StatusCached marks a match answered from the cache.
	StatusCached = "cached"
)

// durationBucketBoundaries covers 100us to 60s: small fixtures finish in
// microseconds, whole-file trees of large sources in seconds.
var durationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60}

// sizeBucketBoundaries covers mapping sizes from a handful of nodes to
// a few hundred thousand.
var sizeBucketBoundaries = []float64{1, 10, 100, 1000, 10000, 100000, 1000000}

// MatchMetrics holds the OTel instruments recorded per tree-pair match.
type MatchMetrics struct {
	matchesTotal   metric.Int64Counter
	matchDuration  metric.Float64Histogram
	errorsTotal    metric.Int64Counter
	mappedNodes    metric.Int64Histogram
	ambiguousPairs metric.Int64Histogram
	inflight       metric.Int64UpDownCounter
}

// MatchRecord describes one finished match.
type MatchRecord struct {
	Stage     string
	Status    string
	Duration  time.Duration
	Mapped    int
	Ambiguous int
}

// NewMatchMetrics creates match instruments from the given meter.
func NewMatchMetrics(mt metric.Meter) (*MatchMetrics, error) {
	matchesTotal, err := mt.Int64Counter(metricMatchesTotal,
		metric.WithDescription("Total number of tree-pair matches"),
		metric.WithUnit("{match}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMatchesTotal, err)
	}

	matchDuration, err := mt.Float64Histogram(metricMatchDuration,
		metric.WithDescription("Match duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMatchDuration, err)
	}

	errorsTotal, err := mt.Int64Counter(metricMatchErrors,
		metric.WithDescription("Total number of failed matches"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMatchErrors, err)
	}

	mappedNodes, err := mt.Int64Histogram(metricMappedNodes,
		metric.WithDescription("Mapped source nodes per match"),
		metric.WithUnit("{node}"),
		metric.WithExplicitBucketBoundaries(sizeBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMappedNodes, err)
	}

	ambiguousPairs, err := mt.Int64Histogram(metricAmbiguousPairs,
		metric.WithDescription("Ambiguous candidate pairs per match"),
		metric.WithUnit("{pair}"),
		metric.WithExplicitBucketBoundaries(sizeBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAmbiguousPairs, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightMatch,
		metric.WithDescription("Number of matches in progress"),
		metric.WithUnit("{match}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightMatch, err)
	}

	return &MatchMetrics{
		matchesTotal:   matchesTotal,
		matchDuration:  matchDuration,
		errorsTotal:    errorsTotal,
		mappedNodes:    mappedNodes,
		ambiguousPairs: ambiguousPairs,
		inflight:       inflight,
	}, nil
}

// RecordMatch records a finished match.
func (mm *MatchMetrics) RecordMatch(ctx context.Context, rec MatchRecord) {
	attrs := metric.WithAttributes(
		attribute.String(attrStage, rec.Stage),
		attribute.String(attrStatus, rec.Status),
	)

	mm.matchesTotal.Add(ctx, 1, attrs)
	mm.matchDuration.Record(ctx, rec.Duration.Seconds(), attrs)

	if rec.Status == StatusError {
		mm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStage, rec.Stage)))

		return
	}

	stage := metric.WithAttributes(attribute.String(attrStage, rec.Stage))
	mm.mappedNodes.Record(ctx, int64(rec.Mapped), stage)

	if rec.Status == StatusOK {
		mm.ambiguousPairs.Record(ctx, int64(rec.Ambiguous), stage)
	}
}

// TrackInflight increments the in-flight counter and returns a function to
// decrement it.
func (mm *MatchMetrics) TrackInflight(ctx context.Context, stage string) func() {
	attrs := metric.WithAttributes(attribute.String(attrStage, stage))
	mm.inflight.Add(ctx, 1, attrs)

	return func() {
		mm.inflight.Add(ctx, -1, attrs)
	}
}
