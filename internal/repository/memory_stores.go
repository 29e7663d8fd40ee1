package repository

import (
	"context"
	"sync"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	applogger "PlanSentry/pkg/logger"
)

// LogEmitter writes execution events to the log. Used when Kafka is disabled.
type LogEmitter struct {
	l *applogger.Logger
}

var _ domrepo.ExecutionEmitter = (*LogEmitter)(nil)

func NewLogEmitter(l *applogger.Logger) *LogEmitter {
	return &LogEmitter{l: l.With(applogger.String("component", "execution_emitter"))}
}

func (e *LogEmitter) Emit(_ context.Context, ev models.ExecutionEvent) error {
	e.l.Info("plan executed",
		applogger.String("plan_id", ev.PlanID),
		applogger.String("symbol", ev.Symbol),
		applogger.String("side", string(ev.Side)),
		applogger.Float64("entry", ev.Entry),
		applogger.Float64("confluence", ev.Confluence),
		applogger.Float64("threshold", ev.Threshold),
		applogger.Int64("latency_ms", ev.LatencyMs),
	)
	return nil
}

func (e *LogEmitter) Close() error { return nil }

// MemoryOutcomeStore keeps outcomes in process. Used when ClickHouse is
// disabled and in tests.
type MemoryOutcomeStore struct {
	mu   sync.RWMutex
	rows []models.SignalOutcome
}

var _ domrepo.OutcomeStore = (*MemoryOutcomeStore)(nil)

func NewMemoryOutcomeStore() *MemoryOutcomeStore {
	return &MemoryOutcomeStore{}
}

func (s *MemoryOutcomeStore) Init(context.Context) error { return nil }

func (s *MemoryOutcomeStore) Append(_ context.Context, o models.SignalOutcome) error {
	s.mu.Lock()
	s.rows = append(s.rows, o)
	s.mu.Unlock()
	return nil
}

// Recent returns newest first.
func (s *MemoryOutcomeStore) Recent(_ context.Context, symbol string, limit int) ([]models.SignalOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SignalOutcome
	for i := len(s.rows) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.rows[i].Symbol == symbol {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}

func (s *MemoryOutcomeStore) Close() error { return nil }
