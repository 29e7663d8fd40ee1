package usecase

import (
	"context"
	"fmt"
	"time"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	applogger "PlanSentry/pkg/logger"
	"PlanSentry/pkg/util"
)

// OutcomeRecorder appends signal outcomes to the durable log and forwards
// them to the learning advisor on a best-effort basis.
type OutcomeRecorder struct {
	store   domrepo.OutcomeStore
	advisor domrepo.LearningAdvisor
	metrics domrepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

func NewOutcomeRecorder(store domrepo.OutcomeStore, advisor domrepo.LearningAdvisor, metrics domrepo.Metrics, log *applogger.Logger, now func() time.Time) *OutcomeRecorder {
	if now == nil {
		now = time.Now
	}
	return &OutcomeRecorder{
		store:   store,
		advisor: advisor,
		metrics: metrics,
		log:     log.With(applogger.String("component", "outcome_recorder")),
		now:     now,
	}
}

// FromRequest converts an API request into an outcome record.
func (r *OutcomeRecorder) FromRequest(req models.OutcomeRequest) models.SignalOutcome {
	return models.SignalOutcome{
		PlanID:             req.PlanID,
		Symbol:             util.NormalizeSymbol(req.Symbol),
		Session:            models.Session(req.Session),
		ConfluenceAtSignal: req.ConfluenceAtSignal,
		Result:             models.OutcomeResult(req.Result),
		RiskReward:         req.RiskReward,
		Latency:            time.Duration(req.LatencyMs) * time.Millisecond,
		RecordedAt:         r.now().UTC(),
	}
}

// Record appends o. Only the store write can fail the call.
func (r *OutcomeRecorder) Record(ctx context.Context, o models.SignalOutcome) error {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = r.now().UTC()
	}
	if err := r.store.Append(ctx, o); err != nil {
		r.metrics.RecordError("outcome_append")
		return fmt.Errorf("append outcome %s: %w", o.PlanID, err)
	}
	if r.advisor != nil {
		if err := r.advisor.RecordOutcome(ctx, o); err != nil {
			r.log.Warn("advisor did not accept outcome",
				applogger.String("plan_id", o.PlanID),
				applogger.Error(err),
			)
		}
	}
	return nil
}

// Recent returns the newest outcomes for symbol.
func (r *OutcomeRecorder) Recent(ctx context.Context, symbol string, limit int) ([]models.SignalOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.store.Recent(ctx, util.NormalizeSymbol(symbol), limit)
}
