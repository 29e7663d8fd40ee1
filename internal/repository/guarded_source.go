package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	cb "github.com/sony/gobreaker"

	"PlanSentry/internal/domain/models"
	domrepo "PlanSentry/internal/domain/repository"
	"PlanSentry/internal/service/ratelimit"
	applogger "PlanSentry/pkg/logger"
)

// GuardedSource wraps a BarSource with a shared rate limit and a circuit
// breaker. Only transient failures count against the breaker.
type GuardedSource struct {
	inner   domrepo.BarSource
	limiter *ratelimit.Limiter
	breaker *cb.CircuitBreaker
	l       *applogger.Logger
}

var _ domrepo.BarSource = (*GuardedSource)(nil)

// GuardSettings configures NewGuardedSource.
type GuardSettings struct {
	Name                string
	RPS                 float64
	Burst               int
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func NewGuardedSource(inner domrepo.BarSource, s GuardSettings, l *applogger.Logger) *GuardedSource {
	g := &GuardedSource{
		inner:   inner,
		limiter: ratelimit.New(s.RPS, s.Burst),
		l:       l.With(applogger.String("component", "guarded_source")),
	}
	st := cb.Settings{Name: s.Name}
	st.Interval = 60 * time.Second
	st.Timeout = s.OpenTimeout
	st.ReadyToTrip = func(counts cb.Counts) bool {
		return counts.ConsecutiveFailures >= s.ConsecutiveFailures
	}
	st.IsSuccessful = func(err error) bool {
		return err == nil || !errors.Is(err, models.ErrTransientFetch)
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		g.l.Warn("bar source breaker state change",
			applogger.String("breaker", name),
			applogger.String("from", from.String()),
			applogger.String("to", to.String()),
		)
	}
	g.breaker = cb.NewCircuitBreaker(st)
	return g
}

func (g *GuardedSource) FetchBars(ctx context.Context, symbol string, count int) ([]models.Bar, error) {
	// one bucket for the whole upstream
	if err := g.limiter.Wait(ctx, "fetch"); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.FetchBars(ctx, symbol, count)
	})
	if err != nil {
		if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
			return nil, models.NewDataError(models.ErrTransientFetch, symbol, "%v", err)
		}
		return nil, err
	}
	return res.([]models.Bar), nil
}

// Health fails fast while the breaker is open.
func (g *GuardedSource) Health(ctx context.Context) error {
	if g.breaker.State() == cb.StateOpen {
		return fmt.Errorf("bar source: %w", cb.ErrOpenState)
	}
	return g.inner.Health(ctx)
}

// State reports the breaker state for diagnostics.
func (g *GuardedSource) State() string {
	return g.breaker.State().String()
}
