package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"PlanSentry/internal/domain/models"
)

var testNow = time.Date(2026, 3, 4, 13, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

type fakeRefresher struct {
	mu       sync.Mutex
	active   []string
	calls    int
	failures map[string]error
}

func (f *fakeRefresher) RefreshStale(_ context.Context, symbols []string) map[string]error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[string]error)
	for _, s := range symbols {
		if err, ok := f.failures[s]; ok {
			out[s] = err
		}
	}
	return out
}

func (f *fakeRefresher) MarkActive(symbols []string) {
	f.mu.Lock()
	f.active = append([]string(nil), symbols...)
	f.mu.Unlock()
}

type fakeSnapshots struct {
	mu   sync.Mutex
	snap map[string]*models.StructuralSnapshot
	err  error
}

func (f *fakeSnapshots) set(s *models.StructuralSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		f.snap = make(map[string]*models.StructuralSnapshot)
	}
	f.snap[s.Symbol] = s
}

func (f *fakeSnapshots) Snapshot(_ context.Context, symbol string) (*models.StructuralSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.snap[symbol]
	if !ok {
		return nil, models.NewDataError(models.ErrInsufficientData, symbol, "no bars cached")
	}
	cp := *s
	return &cp, nil
}

type fakeSessions struct {
	info models.SessionInfo
}

func (f fakeSessions) Classify(string, time.Time) models.SessionInfo { return f.info }

type fakeProfiles map[string]models.AssetProfile

func (f fakeProfiles) Get(symbol string) (models.AssetProfile, bool) {
	p, ok := f[symbol]
	return p, ok
}

type fakeThresholds struct {
	value      float64
	computeErr error
	defaultErr error
}

func (f fakeThresholds) ComputeThreshold(symbol string, session models.Session, vr float64) (models.ThresholdCalculation, error) {
	if f.computeErr != nil {
		return models.ThresholdCalculation{}, f.computeErr
	}
	return models.ThresholdCalculation{
		Symbol: symbol, Session: session, VolatilityRatio: vr,
		Threshold: f.value, Raw: f.value, Floor: 50, Ceiling: 95,
		Source: models.SourceCalibrated,
	}, nil
}

func (f fakeThresholds) SessionDefault(symbol string, session models.Session) (models.ThresholdCalculation, error) {
	if f.defaultErr != nil {
		return models.ThresholdCalculation{}, f.defaultErr
	}
	return models.ThresholdCalculation{
		Symbol: symbol, Session: session, VolatilityRatio: 1,
		Threshold: 66, Raw: 66, Floor: 50, Ceiling: 95,
		Source: models.SourceSessionDefault,
	}, nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []models.ExecutionEvent
	err    error
}

func (f *fakeEmitter) Emit(_ context.Context, ev models.ExecutionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEmitter) Close() error { return nil }

func (f *fakeEmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeAdvisor struct {
	shift float64
	err   error
	got   []models.SignalOutcome
}

func (f *fakeAdvisor) OptimalParameters(_ context.Context, symbol string, session models.Session) (models.ParameterAdvice, error) {
	if f.err != nil {
		return models.ParameterAdvice{}, f.err
	}
	return models.ParameterAdvice{Symbol: symbol, Session: session, ThresholdShift: f.shift}, nil
}

func (f *fakeAdvisor) RecordOutcome(_ context.Context, o models.SignalOutcome) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, o)
	return nil
}

// fakeSource returns scripted bars and counts calls.
type fakeSource struct {
	calls     atomic.Int32
	healthErr error
	bars      func(symbol string, count int) ([]models.Bar, error)
	started   chan struct{}
	release   chan struct{}
}

func (f *fakeSource) FetchBars(ctx context.Context, symbol string, count int) ([]models.Bar, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.bars == nil {
		return nil, errors.New("no bars configured")
	}
	return f.bars(symbol, count)
}

func (f *fakeSource) Health(context.Context) error { return f.healthErr }

func genBars(symbol string, n int, end time.Time) []models.Bar {
	out := make([]models.Bar, n)
	for i := 0; i < n; i++ {
		ts := end.Add(-time.Duration(n-1-i) * time.Minute)
		base := 100 + float64(i%7)
		out[i] = models.Bar{Symbol: symbol, Timestamp: ts, Open: base, High: base + 1, Low: base - 1, Close: base + 0.5, Volume: 10}
	}
	return out
}

func snapshotWith(symbol string, confluence float64, asOf time.Time) *models.StructuralSnapshot {
	return &models.StructuralSnapshot{
		Symbol:     symbol,
		AsOf:       asOf,
		Close:      100,
		Volatility: models.VolatilityState{Regime: models.VolatilityStable, RangeRatio: 1},
		Confluence: models.ConfluenceBreakdown{Total: confluence},
		Strategy:   models.StrategyHint{Kind: models.StrategyTrendContinuation},
	}
}
