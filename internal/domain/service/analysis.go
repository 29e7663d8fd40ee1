package service

import (
	"context"
	"time"

	"PlanSentry/internal/domain/models"
)

// SnapshotProvider returns the current structural snapshot for a symbol.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, symbol string) (*models.StructuralSnapshot, error)
}

// ThresholdProvider computes the calibrated activation threshold.
type ThresholdProvider interface {
	ComputeThreshold(symbol string, session models.Session, volatilityRatio float64) (models.ThresholdCalculation, error)
	SessionDefault(symbol string, session models.Session) (models.ThresholdCalculation, error)
}

// SessionProvider classifies instants into sessions.
type SessionProvider interface {
	Classify(symbol string, at time.Time) models.SessionInfo
}

// ProfileProvider looks up static asset profiles.
type ProfileProvider interface {
	Get(symbol string) (models.AssetProfile, bool)
}

// Refresher brings bar windows up to date before evaluation.
type Refresher interface {
	// RefreshStale refreshes the given symbols that need it and returns
	// per-symbol failures. Symbols absent from the map are ready.
	RefreshStale(ctx context.Context, symbols []string) map[string]error
	MarkActive(symbols []string)
}
