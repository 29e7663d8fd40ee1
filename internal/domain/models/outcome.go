package models

import "time"

type OutcomeResult string

const (
	OutcomeWin       OutcomeResult = "win"
	OutcomeLoss      OutcomeResult = "loss"
	OutcomeBreakeven OutcomeResult = "breakeven"
	OutcomeNoTrade   OutcomeResult = "no_trade"
)

// SignalOutcome is one append-only record for the learning store.
type SignalOutcome struct {
	PlanID             string        `json:"plan_id"`
	Symbol             string        `json:"symbol"`
	Session            Session       `json:"session"`
	ConfluenceAtSignal float64       `json:"confluence_at_signal"`
	Result             OutcomeResult `json:"result"`
	RiskReward         float64       `json:"risk_reward"`
	Latency            time.Duration `json:"latency"`
	RecordedAt         time.Time     `json:"recorded_at"`
}

// ParameterAdvice is an advisory adjustment from the learning collaborator.
type ParameterAdvice struct {
	Symbol         string  `json:"symbol"`
	Session        Session `json:"session"`
	ThresholdShift float64 `json:"threshold_shift"`
	SampleSize     int     `json:"sample_size"`
}
