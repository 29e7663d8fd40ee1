package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	pkgcache "PlanSentry/pkg/cache"
)

const snapshotVersion = 1

// ErrNoSnapshot means nothing was saved for the symbol.
var ErrNoSnapshot = models.ErrNoSnapshot

type snapshotEnvelope struct {
	Version  int          `json:"v"`
	Symbol   string       `json:"symbol"`
	SavedAt  time.Time    `json:"saved_at"`
	Checksum string       `json:"checksum"`
	Bars     []models.Bar `json:"bars"`
}

// EncodeSnapshot serializes a bar window with a checksum over the bars.
func EncodeSnapshot(symbol string, bars []models.Bar, savedAt time.Time) ([]byte, error) {
	sum, err := barsChecksum(bars)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snapshotEnvelope{
		Version:  snapshotVersion,
		Symbol:   symbol,
		SavedAt:  savedAt.UTC(),
		Checksum: sum,
		Bars:     bars,
	})
}

// DecodeSnapshot validates a stored window. It fails with ErrCorruptSnapshot
// on any structural or checksum mismatch and with ErrStaleData when the
// snapshot is older than maxAge at now.
func DecodeSnapshot(symbol string, data []byte, now time.Time, maxAge time.Duration) ([]models.Bar, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, models.NewDataError(models.ErrCorruptSnapshot, symbol, "decode: %v", err)
	}
	if env.Version != snapshotVersion || env.Symbol != symbol {
		return nil, models.NewDataError(models.ErrCorruptSnapshot, symbol, "header mismatch (v=%d symbol=%q)", env.Version, env.Symbol)
	}
	sum, err := barsChecksum(env.Bars)
	if err != nil || sum != env.Checksum {
		return nil, models.NewDataError(models.ErrCorruptSnapshot, symbol, "checksum mismatch")
	}
	for i, b := range env.Bars {
		if err := b.Validate(); err != nil {
			return nil, models.NewDataError(models.ErrCorruptSnapshot, symbol, "bar %d: %v", i, err)
		}
		if i > 0 && !b.Timestamp.After(env.Bars[i-1].Timestamp) {
			return nil, models.NewDataError(models.ErrCorruptSnapshot, symbol, "bar %d out of order", i)
		}
	}
	if age := now.Sub(env.SavedAt); age > maxAge {
		return nil, models.NewDataError(models.ErrStaleData, symbol, "snapshot age %s exceeds %s", age.Truncate(time.Second), maxAge)
	}
	return env.Bars, nil
}

func barsChecksum(bars []models.Bar) (string, error) {
	raw, err := json.Marshal(bars)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:]), nil
}

// CacheSnapshotStore persists windows in a pkg/cache Store (Redis in
// production). Keys expire a little after maxAge so abandoned symbols
// clean themselves up.
type CacheSnapshotStore struct {
	store  pkgcache.Store
	maxAge time.Duration
	now    func() time.Time
}

var _ domrepo.SnapshotStore = (*CacheSnapshotStore)(nil)

func NewCacheSnapshotStore(store pkgcache.Store, maxAge time.Duration, now func() time.Time) *CacheSnapshotStore {
	if now == nil {
		now = time.Now
	}
	return &CacheSnapshotStore{store: store, maxAge: maxAge, now: now}
}

func snapshotKey(symbol string) string {
	return pkgcache.Key("bars", symbol)
}

func (s *CacheSnapshotStore) Save(ctx context.Context, symbol string, bars []models.Bar, savedAt time.Time) error {
	data, err := EncodeSnapshot(symbol, bars, savedAt)
	if err != nil {
		return err
	}
	if err := s.store.SetBytes(ctx, snapshotKey(symbol), data, 2*s.maxAge); err != nil {
		return fmt.Errorf("save snapshot %s: %w", symbol, err)
	}
	return nil
}

// Load discards corrupt or stale snapshots before returning the error.
func (s *CacheSnapshotStore) Load(ctx context.Context, symbol string) ([]models.Bar, error) {
	data, err := s.store.GetBytes(ctx, snapshotKey(symbol))
	if err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, fmt.Errorf("%s: %w", symbol, ErrNoSnapshot)
		}
		return nil, fmt.Errorf("load snapshot %s: %w", symbol, err)
	}
	bars, err := DecodeSnapshot(symbol, data, s.now(), s.maxAge)
	if err != nil {
		_ = s.store.Delete(ctx, snapshotKey(symbol))
		return nil, err
	}
	return bars, nil
}
