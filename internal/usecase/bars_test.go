package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	"PlanSentry/internal/services/barcache"
)

func minuteBars(symbol string, start time.Time, n int) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		px := 100 + float64(i)
		out[i] = models.Bar{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      px,
			High:      px + 1,
			Low:       px - 1,
			Close:     px + 0.5,
			Volume:    10,
		}
	}
	return out
}

func TestGetBars(t *testing.T) {
	start := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	cache := barcache.New(barcache.WithCapacity(100))
	cache.UpsertMany("XAUUSD", minuteBars("XAUUSD", start, 30))
	uc := NewBarsUseCase(cache)
	ctx := context.Background()

	res, err := uc.GetBars(ctx, GetBarsParams{Symbol: "xauusd"})
	require.NoError(t, err)
	assert.Equal(t, "1m", res.Timeframe)
	assert.Equal(t, 30, res.Count)

	res, err = uc.GetBars(ctx, GetBarsParams{Symbol: "XAUUSD", Timeframe: domrepo.TF5m})
	require.NoError(t, err)
	require.Equal(t, 6, res.Count)
	assert.Equal(t, 50.0, res.Bars[0].Volume)
	assert.Equal(t, start, res.Bars[0].Timestamp)

	res, err = uc.GetBars(ctx, GetBarsParams{Symbol: "XAUUSD", Limit: 3})
	require.NoError(t, err)
	require.Len(t, res.Bars, 3)
	assert.Equal(t, start.Add(29*time.Minute), res.Bars[2].Timestamp)

	res, err = uc.GetBars(ctx, GetBarsParams{
		Symbol: "XAUUSD",
		From:   start.Add(10 * time.Minute),
		To:     start.Add(14 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Count)
}

func TestGetBarsRejects(t *testing.T) {
	start := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	cache := barcache.New()
	cache.UpsertMany("XAUUSD", minuteBars("XAUUSD", start, 5))
	uc := NewBarsUseCase(cache)
	ctx := context.Background()

	_, err := uc.GetBars(ctx, GetBarsParams{})
	assert.ErrorIs(t, err, ErrInvalidBarQuery)

	_, err = uc.GetBars(ctx, GetBarsParams{Symbol: "XAUUSD", Timeframe: "4h"})
	assert.ErrorIs(t, err, ErrInvalidBarQuery)

	_, err = uc.GetBars(ctx, GetBarsParams{Symbol: "XAUUSD", From: start.Add(time.Hour), To: start})
	assert.ErrorIs(t, err, ErrInvalidBarQuery)

	_, err = uc.GetBars(ctx, GetBarsParams{Symbol: "EURUSD"})
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}
