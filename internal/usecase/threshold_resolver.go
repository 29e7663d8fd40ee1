package usecase

import (
	"context"
	"time"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	domsvc "PlanSentry/internal/domain/service"
	"PlanSentry/internal/services/threshold"
	applogger "PlanSentry/pkg/logger"
)

// ThresholdResolver picks the threshold in force for a symbol: calibrated,
// then session default, then the fixed constant. An optional advisor may
// nudge the result within a cap.
type ThresholdResolver struct {
	calib          domsvc.ThresholdProvider
	advisor        domrepo.LearningAdvisor
	fallback       float64
	shiftCap       float64
	advisorTimeout time.Duration
	log            *applogger.Logger
}

type ResolverOption func(*ThresholdResolver)

// WithAdvisor enables advisory shifts capped at ±maxShift.
func WithAdvisor(a domrepo.LearningAdvisor, maxShift float64, timeout time.Duration) ResolverOption {
	return func(r *ThresholdResolver) {
		r.advisor = a
		r.shiftCap = maxShift
		if timeout > 0 {
			r.advisorTimeout = timeout
		}
	}
}

func NewThresholdResolver(calib domsvc.ThresholdProvider, fallback float64, log *applogger.Logger, opts ...ResolverOption) *ThresholdResolver {
	if fallback <= 0 {
		fallback = threshold.DefaultBase
	}
	r := &ThresholdResolver{
		calib:          calib,
		fallback:       fallback,
		advisorTimeout: 2 * time.Second,
		log:            log.With(applogger.String("component", "threshold_resolver")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve never fails; the returned calculation's Source records which
// rung of the fallback chain produced it.
func (r *ThresholdResolver) Resolve(ctx context.Context, symbol string, session models.Session, volatilityRatio float64) models.ThresholdCalculation {
	calc, err := r.calib.ComputeThreshold(symbol, session, volatilityRatio)
	if err != nil {
		r.log.Debug("calibration unavailable, using session default",
			applogger.String("symbol", symbol),
			applogger.String("session", string(session)),
			applogger.Error(err),
		)
		calc, err = r.calib.SessionDefault(symbol, session)
		if err != nil {
			r.log.Debug("session default unavailable, using fixed threshold",
				applogger.String("symbol", symbol),
				applogger.Float64("threshold", r.fallback),
				applogger.Error(err),
			)
			calc = threshold.Fixed(symbol, session, r.fallback)
		}
	}
	return r.advise(ctx, calc)
}

func (r *ThresholdResolver) advise(ctx context.Context, calc models.ThresholdCalculation) models.ThresholdCalculation {
	if r.advisor == nil || r.shiftCap <= 0 {
		return calc
	}
	actx, cancel := context.WithTimeout(ctx, r.advisorTimeout)
	defer cancel()
	advice, err := r.advisor.OptimalParameters(actx, calc.Symbol, calc.Session)
	if err != nil {
		r.log.Debug("advisor unavailable", applogger.String("symbol", calc.Symbol), applogger.Error(err))
		return calc
	}
	if advice.ThresholdShift == 0 {
		return calc
	}
	return threshold.ApplyShift(calc, advice.ThresholdShift, r.shiftCap)
}
