package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	"PlanSentry/internal/services/barcache"
	"PlanSentry/internal/services/features"
	"PlanSentry/pkg/util"
)

// ErrInvalidBarQuery marks a malformed bar window request.
var ErrInvalidBarQuery = errors.New("invalid bar query")

// BarsUseCase reads cached bar windows, optionally rolled up to a coarser
// timeframe. Cached bars are one-minute bars.
type BarsUseCase struct {
	cache *barcache.Cache
}

func NewBarsUseCase(cache *barcache.Cache) *BarsUseCase {
	return &BarsUseCase{cache: cache}
}

type GetBarsParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetBarsResult struct {
	Symbol    string       `json:"symbol"`
	Timeframe string       `json:"timeframe"`
	Count     int          `json:"count"`
	Bars      []models.Bar `json:"bars"`
}

func (uc *BarsUseCase) GetBars(ctx context.Context, p GetBarsParams) (*GetBarsResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.Symbol = util.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", ErrInvalidBarQuery)
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.From.After(p.To) {
		return nil, fmt.Errorf("%w: from must be <= to", ErrInvalidBarQuery)
	}
	if p.Timeframe == "" {
		p.Timeframe = domrepo.DefaultTimeframe()
	}
	if !domrepo.IsValidTimeframe(p.Timeframe) {
		return nil, fmt.Errorf("%w: timeframe %q unsupported", ErrInvalidBarQuery, p.Timeframe)
	}
	if p.Limit <= 0 || p.Limit > uc.cache.Capacity() {
		p.Limit = uc.cache.Capacity()
	}

	all := uc.cache.Snapshot(p.Symbol)
	if len(all) == 0 {
		return nil, models.NewDataError(models.ErrInsufficientData, p.Symbol, "no bars cached")
	}
	bars := all[:0:0]
	for _, b := range all {
		if !p.From.IsZero() && b.Timestamp.Before(p.From) {
			continue
		}
		if !p.To.IsZero() && b.Timestamp.After(p.To) {
			continue
		}
		bars = append(bars, b)
	}

	factor := int(p.Timeframe.Duration() / domrepo.TF1m.Duration())
	bars = features.Aggregate(bars, factor)
	if len(bars) > p.Limit {
		bars = bars[len(bars)-p.Limit:]
	}
	if bars == nil {
		bars = []models.Bar{}
	}

	return &GetBarsResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		Count:     len(bars),
		Bars:      bars,
	}, nil
}
