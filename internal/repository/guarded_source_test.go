package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PlanSentry/internal/domain/models"
	applogger "PlanSentry/pkg/logger"
)

type stubSource struct {
	calls int
	err   error
	bars  []models.Bar
}

func (s *stubSource) FetchBars(_ context.Context, _ string, _ int) ([]models.Bar, error) {
	s.calls++
	return s.bars, s.err
}

func (s *stubSource) Health(context.Context) error { return nil }

func guard(inner *stubSource) *GuardedSource {
	return NewGuardedSource(inner, GuardSettings{
		Name:                "test",
		RPS:                 1000,
		Burst:               100,
		ConsecutiveFailures: 3,
		OpenTimeout:         time.Minute,
	}, applogger.Nop())
}

func TestGuardedSource_OpensAfterTransientFailures(t *testing.T) {
	inner := &stubSource{err: models.NewDataError(models.ErrTransientFetch, "EURUSD", "timeout")}
	g := guard(inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := g.FetchBars(ctx, "EURUSD", 10)
		require.ErrorIs(t, err, models.ErrTransientFetch)
	}
	assert.Equal(t, "open", g.State())

	_, err := g.FetchBars(ctx, "EURUSD", 10)
	assert.ErrorIs(t, err, models.ErrTransientFetch)
	assert.Equal(t, 3, inner.calls, "open breaker must not reach the source")
	assert.Error(t, g.Health(ctx))
}

func TestGuardedSource_PermanentErrorsDoNotTrip(t *testing.T) {
	inner := &stubSource{err: errors.New("unknown symbol")}
	g := guard(inner)
	for i := 0; i < 5; i++ {
		_, err := g.FetchBars(context.Background(), "NOPE", 10)
		assert.EqualError(t, err, "unknown symbol")
	}
	assert.Equal(t, "closed", g.State())
	assert.Equal(t, 5, inner.calls)
}

func TestGuardedSource_PassesBarsThrough(t *testing.T) {
	bars := []models.Bar{{Symbol: "BTCUSD", Timestamp: time.Unix(1700000000, 0), Open: 1, High: 2, Low: 1, Close: 2}}
	g := guard(&stubSource{bars: bars})
	got, err := g.FetchBars(context.Background(), "BTCUSD", 1)
	require.NoError(t, err)
	assert.Equal(t, bars, got)
	assert.NoError(t, g.Health(context.Background()))
}
