package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PlanSentry/internal/domain/models"
	"PlanSentry/internal/services/barcache"
	applogger "PlanSentry/pkg/logger"
	"PlanSentry/pkg/metrics"
	"PlanSentry/pkg/util"
)

func newScheduler(src *fakeSource, profiles fakeProfiles, now time.Time) (*RefreshScheduler, *barcache.Cache) {
	cache := barcache.New(barcache.WithClock(fixedClock(now)))
	cfg := DefaultRefreshConfig()
	cfg.BackoffMin = time.Millisecond
	cfg.BackoffMax = time.Millisecond
	return NewRefreshScheduler(src, cache, profiles, metrics.Nop{}, applogger.Nop(), cfg, fixedClock(now)), cache
}

func TestRefreshCoalescesConcurrentCalls(t *testing.T) {
	src := &fakeSource{
		bars:    func(s string, n int) ([]models.Bar, error) { return genBars(s, 50, testNow), nil },
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	sched, cache := newScheduler(src, fakeProfiles{}, testNow)

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- sched.Refresh(context.Background(), "BTCUSD")
		}()
	}
	<-src.started
	time.Sleep(100 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 50, cache.Len("BTCUSD"))
}

func TestRefreshStaleFansOut(t *testing.T) {
	src := &fakeSource{bars: func(s string, n int) ([]models.Bar, error) {
		if s == "BAD" {
			return nil, models.NewDataError(models.ErrTransientFetch, s, "timeout")
		}
		return genBars(s, 40, testNow), nil
	}}
	sched, cache := newScheduler(src, fakeProfiles{}, testNow)

	failures := sched.RefreshStale(context.Background(), []string{"BTCUSD", "XAUUSD", "BAD", "BTCUSD"})
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures["BAD"], models.ErrDataUnavailable)
	assert.Equal(t, 40, cache.Len("BTCUSD"))
	assert.Equal(t, 40, cache.Len("XAUUSD"))
	// two good symbols once, BAD four times
	assert.Equal(t, int32(6), src.calls.Load())
}

func TestRefreshCadence(t *testing.T) {
	now := testNow
	clock := func() time.Time { return now }
	src := &fakeSource{bars: func(s string, n int) ([]models.Bar, error) { return genBars(s, 40, now), nil }}
	cache := barcache.New(barcache.WithClock(clock))
	sched := NewRefreshScheduler(src, cache, fakeProfiles{}, metrics.Nop{}, applogger.Nop(), DefaultRefreshConfig(), clock)

	assert.True(t, sched.NeedsRefresh("BTCUSD", now), "no bars cached")
	require.Empty(t, sched.RefreshStale(context.Background(), []string{"BTCUSD"}))
	assert.False(t, sched.NeedsRefresh("BTCUSD", now))

	now = testNow.Add(40 * time.Second)
	assert.False(t, sched.NeedsRefresh("BTCUSD", now), "idle interval not elapsed")
	sched.MarkActive([]string{"BTCUSD"})
	assert.True(t, sched.NeedsRefresh("BTCUSD", now), "active interval elapsed")

	sched.MarkActive(nil)
	now = testNow.Add(4 * time.Minute)
	assert.True(t, sched.NeedsRefresh("BTCUSD", now), "newest bar older than stale bound")
}

func TestRefreshSkipsClosedMarkets(t *testing.T) {
	saturday := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{bars: func(s string, n int) ([]models.Bar, error) { return genBars(s, 40, saturday), nil }}
	profiles := fakeProfiles{
		"BTCUSD": {Symbol: "BTCUSD", AlwaysOpen: true},
		"XAUUSD": {Symbol: "XAUUSD"},
	}
	sched, cache := newScheduler(src, profiles, saturday)

	assert.True(t, sched.MarketClosed("XAUUSD", saturday))
	assert.False(t, sched.MarketClosed("BTCUSD", saturday))

	failures := sched.RefreshStale(context.Background(), []string{"BTCUSD", "XAUUSD"})
	assert.Empty(t, failures)
	assert.Equal(t, 40, cache.Len("BTCUSD"))
	assert.Zero(t, cache.Len("XAUUSD"))
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRefreshUnhealthySource(t *testing.T) {
	src := &fakeSource{healthErr: errors.New("connection refused")}
	sched, cache := newScheduler(src, fakeProfiles{}, testNow)
	cache.UpsertMany("FRESH", genBars("FRESH", 40, testNow))

	failures := sched.RefreshStale(context.Background(), []string{"FRESH", "EMPTY"})
	assert.Zero(t, src.calls.Load())
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures["EMPTY"], models.ErrDataUnavailable)
}

func TestWeekendWindow(t *testing.T) {
	w := DefaultWeekend
	tests := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2026, 3, 6, 20, 59, 0, 0, time.UTC), false}, // Friday
		{time.Date(2026, 3, 6, 21, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 7, 3, 0, 0, 0, time.UTC), true},  // Saturday
		{time.Date(2026, 3, 8, 20, 0, 0, 0, time.UTC), true}, // Sunday
		{time.Date(2026, 3, 8, 20, 59, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 8, 21, 0, 0, 0, time.UTC), false},
		{time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC), false}, // Wednesday
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.Contains(tt.at), tt.at.String())
	}
	assert.False(t, WeekendWindow{}.Contains(time.Date(2026, 3, 7, 3, 0, 0, 0, time.UTC)))

	wrap := WeekendWindow{Enabled: true, StartDay: time.Saturday, StartHour: 22, EndDay: time.Monday, EndHour: 1}
	assert.True(t, wrap.Contains(time.Date(2026, 3, 7, 23, 0, 0, 0, time.UTC)))
	assert.True(t, wrap.Contains(time.Date(2026, 3, 9, 0, 30, 0, 0, time.UTC)))
	assert.False(t, wrap.Contains(time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC)))

	// every minute of a week agrees with the shared weekly-window helper
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for m := 0; m < 7*24*60; m += 7 {
		at := start.Add(time.Duration(m) * time.Minute)
		want := util.InWeeklyWindow(at, time.Friday, 21, time.Sunday, 21)
		require.Equal(t, want, w.Contains(at), at.String())
	}
}
