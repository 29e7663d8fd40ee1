package middleware

import (
	"context"
	"fmt"
	"time"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	"PlanSentry/internal/service/ratelimit"
	"PlanSentry/internal/services/barcache"
	applogger "PlanSentry/pkg/logger"
	"PlanSentry/pkg/util"
)

// BarSink receives bars that passed the pipeline.
type BarSink interface {
	Ingest(ctx context.Context, bar models.Bar) error
}

// CacheSink writes bars straight into a BarCache.
type CacheSink struct {
	Cache *barcache.Cache
}

func (s CacheSink) Ingest(_ context.Context, bar models.Bar) error {
	s.Cache.Upsert(bar.Symbol, bar)
	return nil
}

// BarPipeline sits between the live bar stream and the cache. It normalizes
// symbols, drops inconsistent bars and throttles each symbol.
type BarPipeline struct {
	sink      BarSink
	metrics   domrepo.Metrics
	log       *applogger.Logger
	maxRPS    float64
	burst     int
	limiter   *ratelimit.Limiter
	transform func(*models.Bar) *models.Bar
}

type PipelineOption func(*BarPipeline)

// WithMaxRPS sets the max bars per second per symbol.
func WithMaxRPS(n float64, burst int) PipelineOption {
	return func(p *BarPipeline) {
		p.maxRPS = n
		p.burst = burst
	}
}

// WithTransform replaces the default symbol normalization.
func WithTransform(fn func(*models.Bar) *models.Bar) PipelineOption {
	return func(p *BarPipeline) { p.transform = fn }
}

func NewBarPipeline(sink BarSink, metrics domrepo.Metrics, log *applogger.Logger, opts ...PipelineOption) *BarPipeline {
	p := &BarPipeline{
		sink:      sink,
		metrics:   metrics,
		log:       log.With(applogger.String("component", "bar_pipeline")),
		maxRPS:    5,
		burst:     5,
		transform: normalize,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.limiter = ratelimit.New(p.maxRPS, p.burst)
	return p
}

func normalize(b *models.Bar) *models.Bar {
	out := *b
	out.Symbol = util.NormalizeSymbol(b.Symbol)
	out.Timestamp = b.Timestamp.UTC()
	return &out
}

// Process validates, throttles and forwards one bar. Throttled bars are
// dropped without error.
func (p *BarPipeline) Process(ctx context.Context, b *models.Bar) error {
	start := time.Now()
	if b == nil {
		p.metrics.RecordError("pipeline_validate")
		return fmt.Errorf("bar nil")
	}
	if p.transform != nil {
		b = p.transform(b)
	}
	if err := b.Validate(); err != nil {
		p.metrics.RecordError("pipeline_validate")
		p.log.Debug("bar rejected", applogger.String("symbol", b.Symbol), applogger.Error(err))
		return err
	}
	if !p.limiter.Allow(b.Symbol) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}
	if err := p.sink.Ingest(ctx, *b); err != nil {
		p.metrics.RecordError("pipeline_sink")
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}
