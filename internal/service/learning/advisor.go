package learning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PlanSentry/internal/domain/models"
	drepo "PlanSentry/internal/domain/repository"
	xhttp "PlanSentry/pkg/http"
)

// HTTPAdvisor talks to the learning service. It is advisory only: callers
// treat every error as "no advice".
type HTTPAdvisor struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPAdvisor builds an advisor for baseURL with the given timeout.
func NewHTTPAdvisor(baseURL string, timeout time.Duration, opts ...xhttp.ClientOption) *HTTPAdvisor {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &HTTPAdvisor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(opts...),
	}
}

type parametersResp struct {
	ThresholdShift float64 `json:"threshold_shift"`
	SampleSize     int     `json:"sample_size"`
}

func (a *HTTPAdvisor) OptimalParameters(ctx context.Context, symbol string, session models.Session) (models.ParameterAdvice, error) {
	advice := models.ParameterAdvice{Symbol: symbol, Session: session}
	var resp parametersResp
	err := a.send(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    a.baseURL + "/parameters",
		QueryParams: map[string][]string{
			"symbol":  {symbol},
			"session": {string(session)},
		},
	}, &resp)
	if err != nil {
		return advice, fmt.Errorf("optimal parameters %s/%s: %w", symbol, session, err)
	}
	advice.ThresholdShift = resp.ThresholdShift
	advice.SampleSize = resp.SampleSize
	return advice, nil
}

type outcomeReq struct {
	PlanID             string  `json:"plan_id"`
	Symbol             string  `json:"symbol"`
	Session            string  `json:"session"`
	ConfluenceAtSignal float64 `json:"confluence_at_signal"`
	Result             string  `json:"result"`
	RiskReward         float64 `json:"risk_reward"`
	LatencyMs          int64   `json:"latency_ms"`
	RecordedAt         string  `json:"recorded_at"`
}

// RecordOutcome posts the outcome, retrying transient failures twice.
func (a *HTTPAdvisor) RecordOutcome(ctx context.Context, o models.SignalOutcome) error {
	req := outcomeReq{
		PlanID:             o.PlanID,
		Symbol:             o.Symbol,
		Session:            string(o.Session),
		ConfluenceAtSignal: o.ConfluenceAtSignal,
		Result:             string(o.Result),
		RiskReward:         o.RiskReward,
		LatencyMs:          o.Latency.Milliseconds(),
		RecordedAt:         o.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
	var err error
	for i := 1; i <= 3; i++ {
		err = a.send(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     a.baseURL + "/outcomes",
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    req,
		}, nil)
		if err == nil || !retryable(err) {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return fmt.Errorf("record outcome %s: %w", o.PlanID, err)
	}
	return nil
}

func (a *HTTPAdvisor) send(ctx context.Context, opts *xhttp.RequestOptions, dest interface{}) error {
	if a.baseURL == "" {
		return errors.New("learning advisor not configured")
	}
	return a.client.SendAndParse(ctx, opts, dest)
}

func retryable(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// NoopAdvisor is used when no learning service is configured.
type NoopAdvisor struct{}

func (NoopAdvisor) OptimalParameters(_ context.Context, symbol string, session models.Session) (models.ParameterAdvice, error) {
	return models.ParameterAdvice{Symbol: symbol, Session: session}, nil
}

func (NoopAdvisor) RecordOutcome(context.Context, models.SignalOutcome) error { return nil }

var (
	_ drepo.LearningAdvisor = (*HTTPAdvisor)(nil)
	_ drepo.LearningAdvisor = NoopAdvisor{}
)
