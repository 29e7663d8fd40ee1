package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PlanSentry/internal/domain/models"
	"PlanSentry/internal/services/barcache"
	"PlanSentry/internal/services/structure"
)

func TestAnalysisServiceSnapshot(t *testing.T) {
	now := testNow
	clock := func() time.Time { return now }
	cache := barcache.New(barcache.WithClock(clock))
	svc := NewAnalysisService(cache, structure.New(structure.WithClock(clock)), fakeProfiles{
		"BTCUSD": {Symbol: "BTCUSD", VWAPSigma: 2.5},
	}, time.Minute, clock)

	_, err := svc.Snapshot(context.Background(), "BTCUSD")
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	cache.UpsertMany("BTCUSD", genBars("BTCUSD", 10, now))
	_, err = svc.Snapshot(context.Background(), "BTCUSD")
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	cache.UpsertMany("BTCUSD", genBars("BTCUSD", 80, now))
	first, err := svc.Snapshot(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, now, first.AsOf)
	assert.NotEmpty(t, first.Strategy.Kind)
	assert.GreaterOrEqual(t, first.Confluence.Total, 0.0)
	assert.LessOrEqual(t, first.Confluence.Total, 100.0)

	now = now.Add(30 * time.Second)
	second, err := svc.Snapshot(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, first.GeneratedAt, second.GeneratedAt, "memoized while the newest bar is unchanged")
	assert.Equal(t, 30*time.Second, second.Age)

	now = now.Add(5 * time.Second)
	rewritten, _ := cache.Latest("BTCUSD")
	rewritten.Close += 0.25
	rewritten.Volume++
	cache.Upsert("BTCUSD", rewritten)
	revised, err := svc.Snapshot(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, now, revised.GeneratedAt, "rewriting the newest bar in place invalidates the memo")
	assert.Equal(t, testNow, revised.AsOf)

	cache.Upsert("BTCUSD", models.Bar{Symbol: "BTCUSD", Timestamp: testNow.Add(time.Minute), Open: 101, High: 102, Low: 100, Close: 101.5, Volume: 5})
	third, err := svc.Snapshot(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(time.Minute), third.AsOf)
	assert.Equal(t, now, third.GeneratedAt)
}
