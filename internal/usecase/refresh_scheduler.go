package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	domsvc "PlanSentry/internal/domain/service"
	"PlanSentry/internal/services/barcache"
	applogger "PlanSentry/pkg/logger"
	"PlanSentry/pkg/util"
)

// WeekendWindow is the weekly closed-market interval in UTC.
type WeekendWindow struct {
	Enabled   bool
	StartDay  time.Weekday
	StartHour int
	EndDay    time.Weekday
	EndHour   int
}

// DefaultWeekend is Friday 21:00 to Sunday 21:00 UTC.
var DefaultWeekend = WeekendWindow{Enabled: true, StartDay: time.Friday, StartHour: 21, EndDay: time.Sunday, EndHour: 21}

// Contains reports whether t falls inside the window.
func (w WeekendWindow) Contains(t time.Time) bool {
	return w.Enabled && util.InWeeklyWindow(t, w.StartDay, w.StartHour, w.EndDay, w.EndHour)
}

type RefreshConfig struct {
	Symbols        []string
	ActiveInterval time.Duration
	IdleInterval   time.Duration
	StaleAfter     time.Duration
	FetchCount     int
	FetchTimeout   time.Duration
	Retries        int
	BackoffMin     time.Duration
	BackoffMax     time.Duration
	Workers        int
	Weekend        WeekendWindow
}

// DefaultRefreshConfig mirrors the documented cadence.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		ActiveInterval: 30 * time.Second,
		IdleInterval:   300 * time.Second,
		StaleAfter:     180 * time.Second,
		FetchCount:     200,
		FetchTimeout:   5 * time.Second,
		Retries:        3,
		BackoffMin:     50 * time.Millisecond,
		BackoffMax:     2 * time.Second,
		Workers:        8,
		Weekend:        DefaultWeekend,
	}
}

// RefreshScheduler keeps BarCache windows current. Concurrent refreshes of
// one symbol share a single fetch.
type RefreshScheduler struct {
	source   domrepo.BarSource
	cache    *barcache.Cache
	profiles domsvc.ProfileProvider
	metrics  domrepo.Metrics
	log      *applogger.Logger
	cfg      RefreshConfig
	now      func() time.Time

	group singleflight.Group
	sem   chan struct{}

	mu          sync.Mutex
	active      map[string]struct{}
	lastRefresh map[string]time.Time
}

var _ domsvc.Refresher = (*RefreshScheduler)(nil)

func NewRefreshScheduler(
	source domrepo.BarSource,
	cache *barcache.Cache,
	profiles domsvc.ProfileProvider,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	cfg RefreshConfig,
	now func() time.Time,
) *RefreshScheduler {
	if now == nil {
		now = time.Now
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &RefreshScheduler{
		source:      source,
		cache:       cache,
		profiles:    profiles,
		metrics:     metrics,
		log:         log.With(applogger.String("component", "refresh_scheduler")),
		cfg:         cfg,
		now:         now,
		sem:         make(chan struct{}, cfg.Workers),
		active:      make(map[string]struct{}),
		lastRefresh: make(map[string]time.Time),
	}
}

// MarkActive replaces the set of symbols that have pending plans. Active
// symbols refresh on the short interval.
func (s *RefreshScheduler) MarkActive(symbols []string) {
	s.mu.Lock()
	s.active = make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		s.active[sym] = struct{}{}
	}
	s.mu.Unlock()
}

func (s *RefreshScheduler) isActive(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[symbol]
	return ok
}

// MarketClosed reports whether symbol is inside the weekend window and not
// always open.
func (s *RefreshScheduler) MarketClosed(symbol string, at time.Time) bool {
	if !s.cfg.Weekend.Contains(at) {
		return false
	}
	if s.profiles != nil {
		if p, ok := s.profiles.Get(symbol); ok && p.AlwaysOpen {
			return false
		}
	}
	return true
}

// NeedsRefresh applies the cadence: stale data always refreshes, otherwise
// the active or idle interval since the last successful refresh decides.
func (s *RefreshScheduler) NeedsRefresh(symbol string, now time.Time) bool {
	if s.MarketClosed(symbol, now) {
		return false
	}
	if s.cache.IsStale(symbol, s.cfg.StaleAfter) {
		return true
	}
	interval := s.cfg.IdleInterval
	if s.isActive(symbol) {
		interval = s.cfg.ActiveInterval
	}
	s.mu.Lock()
	last, ok := s.lastRefresh[symbol]
	s.mu.Unlock()
	return !ok || now.Sub(last) >= interval
}

// RefreshStale refreshes the symbols that need it in parallel, bounded by
// the worker count, and returns the failures. Absent symbols are ready.
func (s *RefreshScheduler) RefreshStale(ctx context.Context, symbols []string) map[string]error {
	now := s.now()
	var due []string
	for _, sym := range dedupe(symbols) {
		if s.NeedsRefresh(sym, now) {
			due = append(due, sym)
		}
	}
	failures := make(map[string]error)
	if len(due) == 0 {
		return failures
	}

	if err := s.source.Health(ctx); err != nil {
		s.metrics.RecordError("source_health")
		s.log.Warn("bar source unhealthy, skipping fetches", applogger.Error(err))
		for _, sym := range due {
			if s.cache.IsStale(sym, s.cfg.StaleAfter) {
				failures[sym] = models.NewDataError(models.ErrDataUnavailable, sym, "bar source unhealthy: %v", err)
			}
		}
		return failures
	}

	type result struct {
		symbol string
		err    error
	}
	ch := make(chan result, len(due))
	var wg sync.WaitGroup
	for _, sym := range due {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			select {
			case s.sem <- struct{}{}:
			case <-ctx.Done():
				ch <- result{sym, ctx.Err()}
				return
			}
			defer func() { <-s.sem }()
			ch <- result{sym, s.Refresh(ctx, sym)}
		}(sym)
	}
	go func() { wg.Wait(); close(ch) }()

	for r := range ch {
		if r.err != nil {
			failures[r.symbol] = r.err
		}
	}
	return failures
}

// Refresh fetches one symbol. Callers that arrive while a fetch for the same
// symbol is in flight share its result.
func (s *RefreshScheduler) Refresh(ctx context.Context, symbol string) error {
	_, err, shared := s.group.Do(symbol, func() (interface{}, error) {
		return nil, s.fetchWithRetry(ctx, symbol)
	})
	if shared {
		s.metrics.RecordRefresh(symbol, "coalesced")
	}
	return err
}

func (s *RefreshScheduler) fetchWithRetry(ctx context.Context, symbol string) error {
	attempts := s.cfg.Retries + 1
	backoff := s.cfg.BackoffMin
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > s.cfg.BackoffMax {
				backoff = s.cfg.BackoffMax
			}
		}
		n, err := s.fetchOnce(ctx, symbol)
		if err == nil {
			s.mu.Lock()
			s.lastRefresh[symbol] = s.now()
			s.mu.Unlock()
			s.metrics.RecordRefresh(symbol, "ok")
			s.log.Debug("refreshed", applogger.String("symbol", symbol), applogger.Int("bars", n), applogger.Int("attempt", i+1))
			return nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Debug("fetch attempt failed",
			applogger.String("symbol", symbol),
			applogger.Int("attempt", i+1),
			applogger.Error(err),
		)
	}
	s.metrics.RecordRefresh(symbol, "unavailable")
	s.metrics.RecordError(models.ErrorKind(models.ErrDataUnavailable))
	s.log.Warn("symbol data unavailable this cycle",
		applogger.String("symbol", symbol),
		applogger.Int("attempts", attempts),
		applogger.Error(lastErr),
	)
	return models.NewDataError(models.ErrDataUnavailable, symbol, "%d attempts failed: %v", attempts, lastErr)
}

func (s *RefreshScheduler) fetchOnce(ctx context.Context, symbol string) (int, error) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	start := time.Now()
	bars, err := s.source.FetchBars(fctx, symbol, s.cfg.FetchCount)
	s.metrics.RecordFetchLatency(symbol, time.Since(start).Seconds())
	if err != nil {
		return 0, err
	}
	valid := bars[:0:0]
	for _, b := range bars {
		if b.Validate() == nil {
			valid = append(valid, b)
		}
	}
	if len(valid) == 0 {
		return 0, models.NewDataError(models.ErrTransientFetch, symbol, "source returned no bars")
	}
	s.cache.UpsertMany(symbol, valid)
	return len(valid), nil
}

// Run refreshes configured and active symbols on the active cadence until
// ctx is cancelled. Plan evaluation triggers its own refreshes, so this loop
// only keeps idle symbols warm.
func (s *RefreshScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.ActiveInterval)
	defer ticker.Stop()
	for {
		s.RefreshStale(ctx, s.tracked())
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *RefreshScheduler) tracked() []string {
	s.mu.Lock()
	out := append([]string(nil), s.cfg.Symbols...)
	for sym := range s.active {
		out = append(out, sym)
	}
	s.mu.Unlock()
	return dedupe(out)
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (s *RefreshScheduler) String() string {
	return fmt.Sprintf("refresh(active=%s idle=%s stale=%s)", s.cfg.ActiveInterval, s.cfg.IdleInterval, s.cfg.StaleAfter)
}
