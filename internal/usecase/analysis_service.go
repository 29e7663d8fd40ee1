package usecase

import (
	"context"
	"time"

	"PlanSentry/internal/domain/models"
	domsvc "PlanSentry/internal/domain/service"
	"PlanSentry/internal/service/cache"
	"PlanSentry/internal/services/barcache"
	"PlanSentry/internal/services/strategy"
	"PlanSentry/internal/services/structure"
)

// AnalysisService builds structural snapshots from the BarCache. A snapshot
// is reused while the newest cached bar is unchanged and the TTL holds.
type AnalysisService struct {
	bars     *barcache.Cache
	analyzer *structure.Analyzer
	profiles domsvc.ProfileProvider
	memo     *cache.TTLCache[memoEntry]
	ttl      time.Duration
	window   int
	now      func() time.Time
}

var _ domsvc.SnapshotProvider = (*AnalysisService)(nil)

func NewAnalysisService(
	bars *barcache.Cache,
	analyzer *structure.Analyzer,
	profiles domsvc.ProfileProvider,
	ttl time.Duration,
	now func() time.Time,
) *AnalysisService {
	if now == nil {
		now = time.Now
	}
	return &AnalysisService{
		bars:     bars,
		analyzer: analyzer,
		profiles: profiles,
		memo:     cache.NewTTLCache[memoEntry](now),
		ttl:      ttl,
		window:   bars.Capacity(),
		now:      now,
	}
}

// Snapshot analyzes the symbol's current window. It fails with
// ErrInsufficientData when the window is too short.
func (s *AnalysisService) Snapshot(ctx context.Context, symbol string) (*models.StructuralSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	latest, ok := s.bars.Latest(symbol)
	if !ok {
		return nil, models.NewDataError(models.ErrInsufficientData, symbol, "no bars cached")
	}
	fp := windowFingerprint{
		ts:     latest.Timestamp.UnixNano(),
		open:   latest.Open,
		high:   latest.High,
		low:    latest.Low,
		close:  latest.Close,
		volume: latest.Volume,
		count:  s.bars.Len(symbol),
	}
	if m, ok := s.memo.Get(symbol); ok && m.fp == fp {
		return s.aged(m.snap), nil
	}

	window, err := s.bars.Window(symbol, s.window)
	if err != nil {
		return nil, err
	}
	in := structure.Input{Symbol: symbol, Bars: window}
	if s.profiles != nil {
		if p, ok := s.profiles.Get(symbol); ok {
			in.VWAPSigma = p.VWAPSigma
		}
	}
	snap, err := s.analyzer.Analyze(in)
	if err != nil {
		return nil, err
	}
	snap.Strategy = strategy.ClassifySnapshot(snap)
	s.memo.Set(symbol, memoEntry{fp: fp, snap: snap}, s.ttl)
	return snap, nil
}

// windowFingerprint identifies the cached window a snapshot was built from.
// An in-place rewrite of the newest bar or a backfill changes it.
type windowFingerprint struct {
	ts                             int64
	open, high, low, close, volume float64
	count                          int
}

type memoEntry struct {
	fp   windowFingerprint
	snap *models.StructuralSnapshot
}

// aged returns a copy of a memoized snapshot with its age recomputed.
func (s *AnalysisService) aged(snap *models.StructuralSnapshot) *models.StructuralSnapshot {
	cp := *snap
	cp.Age = s.now().Sub(cp.AsOf)
	if cp.Age < 0 {
		cp.Age = 0
	}
	stale := s.analyzer.Params().StaleAfter
	cp.Stale = stale > 0 && cp.Age > stale
	return &cp
}

// Invalidate drops the memoized snapshot for symbol.
func (s *AnalysisService) Invalidate(symbol string) {
	s.memo.Delete(symbol)
}
