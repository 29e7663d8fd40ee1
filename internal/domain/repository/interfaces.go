package repository

import (
	"context"
	"time"

	"PlanSentry/internal/domain/models"
)

// BarSource is the broker/market-data collaborator.
type BarSource interface {
	// FetchBars returns up to count most recent bars ordered oldest first.
	FetchBars(ctx context.Context, symbol string, count int) ([]models.Bar, error)
	Health(ctx context.Context) error
}

// BarStream delivers live bars pushed by a feed.
type BarStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Bar, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// ExecutionEmitter hands executed plans to the order collaborator.
type ExecutionEmitter interface {
	Emit(ctx context.Context, ev models.ExecutionEvent) error
	Close() error
}

// OutcomeStore is the append-only SignalOutcome log.
type OutcomeStore interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, o models.SignalOutcome) error
	Recent(ctx context.Context, symbol string, limit int) ([]models.SignalOutcome, error)
	Close() error
}

// SnapshotStore persists BarCache windows for crash recovery.
type SnapshotStore interface {
	Save(ctx context.Context, symbol string, bars []models.Bar, savedAt time.Time) error
	// Load returns ErrCorruptSnapshot for checksum failures and
	// ErrStaleData for snapshots beyond the freshness bound.
	Load(ctx context.Context, symbol string) ([]models.Bar, error)
}

// LearningAdvisor is the optional feedback collaborator.
type LearningAdvisor interface {
	OptimalParameters(ctx context.Context, symbol string, session models.Session) (models.ParameterAdvice, error)
	RecordOutcome(ctx context.Context, o models.SignalOutcome) error
}

type Metrics interface {
	RecordRefresh(symbol, result string)
	RecordFetchLatency(symbol string, seconds float64)
	RecordPlanTransition(status string)
	RecordEvaluation(symbol string, confluence, threshold float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
