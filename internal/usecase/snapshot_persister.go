package usecase

import (
	"context"
	"errors"
	"time"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	"PlanSentry/internal/services/barcache"
	applogger "PlanSentry/pkg/logger"
)

// SnapshotPersister writes BarCache windows to durable storage and restores
// them at startup. Corrupt or stale snapshots are discarded and the symbol
// cold-starts from a live fetch.
type SnapshotPersister struct {
	store    domrepo.SnapshotStore
	cache    *barcache.Cache
	interval time.Duration
	log      *applogger.Logger
	metrics  domrepo.Metrics
	now      func() time.Time
}

func NewSnapshotPersister(store domrepo.SnapshotStore, cache *barcache.Cache, interval time.Duration, metrics domrepo.Metrics, log *applogger.Logger, now func() time.Time) *SnapshotPersister {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &SnapshotPersister{
		store:    store,
		cache:    cache,
		interval: interval,
		log:      log.With(applogger.String("component", "snapshot_persister")),
		metrics:  metrics,
		now:      now,
	}
}

// Restore loads snapshots for symbols and returns how many were restored.
func (p *SnapshotPersister) Restore(ctx context.Context, symbols []string) int {
	restored := 0
	for _, sym := range dedupe(symbols) {
		bars, err := p.store.Load(ctx, sym)
		switch {
		case err == nil:
			p.cache.Restore(sym, bars)
			restored++
			p.log.Info("snapshot restored", applogger.String("symbol", sym), applogger.Int("bars", len(bars)))
		case errors.Is(err, models.ErrCorruptSnapshot), errors.Is(err, models.ErrStaleData):
			p.metrics.RecordError(models.ErrorKind(err))
			p.log.Warn("snapshot discarded", applogger.String("symbol", sym), applogger.Error(err))
		case errors.Is(err, models.ErrNoSnapshot):
		default:
			p.metrics.RecordError("snapshot_load")
			p.log.Warn("snapshot load failed", applogger.String("symbol", sym), applogger.Error(err))
		}
	}
	return restored
}

// SaveAll persists every cached symbol and returns the first error.
func (p *SnapshotPersister) SaveAll(ctx context.Context) error {
	var first error
	at := p.now()
	for _, sym := range p.cache.Symbols() {
		bars := p.cache.Snapshot(sym)
		if len(bars) == 0 {
			continue
		}
		if err := p.store.Save(ctx, sym, bars, at); err != nil {
			p.metrics.RecordError("snapshot_save")
			p.log.Warn("snapshot save failed", applogger.String("symbol", sym), applogger.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Run saves on every interval and once more on shutdown.
func (p *SnapshotPersister) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return p.SaveAll(sctx)
		case <-ticker.C:
			_ = p.SaveAll(ctx)
		}
	}
}
