package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCacheHits         = "treematch.cache.hits"
	metricCacheMisses       = "treematch.cache.misses"
	metricCacheComputations = "treematch.cache.computations"
	metricCacheEntries      = "treematch.cache.entries"

	attrCache = "cache"
)

// CacheStatsProvider exposes mapping cache counters for OTel export.
type CacheStatsProvider interface {
	CacheHits() int64
	CacheMisses() int64
	CacheComputations() int64
	CacheEntries() int
}

// RegisterCacheMetrics registers observable gauges reporting the counters of
// the named cache. The returned registration stops reporting when
// unregistered.
func RegisterCacheMetrics(mt metric.Meter, name string, cache CacheStatsProvider) (metric.Registration, error) {
	hits, err := mt.Int64ObservableGauge(metricCacheHits,
		metric.WithDescription("Cache hit count"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHits, err)
	}

	misses, err := mt.Int64ObservableGauge(metricCacheMisses,
		metric.WithDescription("Cache miss count"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMisses, err)
	}

	computations, err := mt.Int64ObservableGauge(metricCacheComputations,
		metric.WithDescription("Mappings computed on behalf of the cache"),
		metric.WithUnit("{computation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheComputations, err)
	}

	entries, err := mt.Int64ObservableGauge(metricCacheEntries,
		metric.WithDescription("Mappings currently retained"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheEntries, err)
	}

	attrs := metric.WithAttributes(attribute.String(attrCache, name))

	reg, err := mt.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(hits, cache.CacheHits(), attrs)
		o.ObserveInt64(misses, cache.CacheMisses(), attrs)
		o.ObserveInt64(computations, cache.CacheComputations(), attrs)
		o.ObserveInt64(entries, int64(cache.CacheEntries()), attrs)

		return nil
	}, hits, misses, computations, entries)
	if err != nil {
		return nil, fmt.Errorf("register cache callback: %w", err)
	}

	return reg, nil
}
