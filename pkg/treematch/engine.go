package treematch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/treematch/pkg/decompressed"
	"github.com/Sumatoshi-tech/treematch/pkg/hast"
	"github.com/Sumatoshi-tech/treematch/pkg/mappings"
	"github.com/Sumatoshi-tech/treematch/pkg/matchers"
	"github.com/Sumatoshi-tech/treematch/pkg/observability"
)

// Engine matches tree pairs from one store, optionally through a shared
// [MappingCache]. It is safe for concurrent use.
type Engine struct {
	store     hast.Resolver
	cache     *MappingCache
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *observability.MatchMetrics
	stage     Stage
	minHeight int
}

// EngineOption configures an [Engine].
type EngineOption func(*Engine)

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets the tracer used for per-match spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// WithMetrics records every match into m.
func WithMetrics(m *observability.MatchMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithCache memoizes mappings in c.
func WithCache(c *MappingCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithMinHeight sets the subtree height floor.
func WithMinHeight(h int) EngineOption {
	return func(e *Engine) { e.minHeight = h }
}

// WithStage sets the stage matches are computed at and cached under. The
// default is [StageSubtree].
func WithStage(st Stage) EngineOption {
	return func(e *Engine) { e.stage = st }
}

// NewEngine creates an engine reading trees from store.
func NewEngine(store hast.Resolver, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		logger:    slog.Default(),
		tracer:    nooptrace.NewTracerProvider().Tracer(observability.InstrumentationName),
		stage:     StageSubtree,
		minHeight: matchers.DefaultMinHeight,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Result is the outcome of [Engine.Match].
type Result struct {
	*Mapper

	// Stats is zero when the mapping came from the cache.
	Stats   matchers.ResolveStats
	Cached  bool
	Elapsed time.Duration
}

// Match maps src onto dst at the configured stage. A cached mapping is shared
// and must not be modified; its arenas are fresh and decompress on demand.
//
// ctx is only checked before matching starts; deadlines bound whole calls.
func (e *Engine) Match(ctx context.Context, src, dst hast.NodeID) (*Result, error) {
	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("match %s -> %s: %w", src, dst, err)
	}

	if e.stage != StageSubtree {
		return nil, fmt.Errorf("match %s -> %s: %w: %s", src, dst, ErrUnknownStage, e.stage)
	}

	key := Key{Src: src, Dst: dst, Stage: e.stage, MinHeight: e.minHeight}

	ctx, span := e.tracer.Start(ctx, "treematch.match", trace.WithAttributes(
		attribute.String("treematch.src", src.String()),
		attribute.String("treematch.dst", dst.String()),
		attribute.String("treematch.stage", key.Stage.String()),
		attribute.Int("treematch.min_height", e.minHeight),
	))
	defer span.End()

	if e.metrics != nil {
		defer e.metrics.TrackInflight(ctx, key.Stage.String())()
	}

	start := time.Now()

	res, err := e.match(key)
	elapsed := time.Since(start)

	if err != nil {
		e.fail(ctx, span, key, elapsed, err)

		return nil, fmt.Errorf("match %s -> %s: %w", src, dst, err)
	}

	res.Elapsed = elapsed
	sum := res.Summary()

	span.SetAttributes(
		attribute.Bool("treematch.cached", res.Cached),
		attribute.Int("treematch.mapped", sum.Mapped),
		attribute.Int("treematch.ambiguous", res.Stats.Ambiguous),
	)

	e.logger.DebugContext(ctx, "tree pair matched",
		slog.String("src", src.String()),
		slog.String("dst", dst.String()),
		slog.Int("src_nodes", sum.SrcNodes),
		slog.Int("dst_nodes", sum.DstNodes),
		slog.Int("mapped", sum.Mapped),
		slog.Int("unique", res.Stats.Unique),
		slog.Int("ambiguous", res.Stats.Ambiguous),
		slog.Int("committed", res.Stats.Committed),
		slog.Bool("cached", res.Cached),
		slog.Duration("elapsed", elapsed),
	)

	if e.metrics != nil {
		status := observability.StatusOK
		if res.Cached {
			status = observability.StatusCached
		}

		e.metrics.RecordMatch(ctx, observability.MatchRecord{
			Stage:     key.Stage.String(),
			Status:    status,
			Duration:  elapsed,
			Mapped:    sum.Mapped,
			Ambiguous: res.Stats.Ambiguous,
		})
	}

	return res, nil
}

func (e *Engine) match(key Key) (*Result, error) {
	opts := []matchers.Option{matchers.WithMinHeight(e.minHeight)}

	if e.cache == nil {
		return e.compute(key, opts)
	}

	var own *Result

	m, cached, err := e.cache.GetOrCompute(key, func() (*mappings.VecStore, error) {
		res, err := e.compute(key, opts)
		if err != nil {
			return nil, err
		}

		own = res

		return res.Mappings, nil
	})
	if err != nil {
		return nil, err
	}

	if own != nil {
		return own, nil
	}

	mapper, err := newMapperWith(e.store, key.Src, key.Dst, m)
	if err != nil {
		return nil, err
	}

	return &Result{Mapper: mapper, Cached: cached}, nil
}

func (e *Engine) compute(key Key, opts []matchers.Option) (*Result, error) {
	mapper, err := NewMapper(e.store, key.Src, key.Dst)
	if err != nil {
		return nil, err
	}

	stats, err := mapper.MatchSubtrees(opts...)
	if err != nil {
		return nil, err
	}

	return &Result{Mapper: mapper, Stats: stats}, nil
}

func (e *Engine) fail(ctx context.Context, span trace.Span, key Key, elapsed time.Duration, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	attrs := []any{
		slog.String("src", key.Src.String()),
		slog.String("dst", key.Dst.String()),
		slog.Any("error", err),
	}

	var ie *decompressed.InconsistencyError
	if errors.As(err, &ie) {
		attrs = append(attrs,
			slog.String("op", ie.Op),
			slog.String("node", ie.Node.String()),
			slog.Uint64("index", uint64(ie.Index)),
		)
		e.logger.WarnContext(ctx, "structural inconsistency while matching", attrs...)
	} else {
		e.logger.DebugContext(ctx, "match failed", attrs...)
	}

	if e.metrics != nil {
		e.metrics.RecordMatch(ctx, observability.MatchRecord{
			Stage:    key.Stage.String(),
			Status:   observability.StatusError,
			Duration: elapsed,
		})
	}
}
