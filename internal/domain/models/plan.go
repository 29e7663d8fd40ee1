package models

import (
	"fmt"
	"time"
)

type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanExecuted  PlanStatus = "executed"
	PlanExpired   PlanStatus = "expired"
	PlanCancelled PlanStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s PlanStatus) Terminal() bool {
	return s == PlanExecuted || s == PlanExpired || s == PlanCancelled
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Direction maps an order side to the structural direction it needs.
func (s Side) Direction() Direction {
	if s == SideSell {
		return DirectionBearish
	}
	return DirectionBullish
}

// Plan is a conditionally-activated trade proposal.
type Plan struct {
	ID         string
	Symbol     string
	Side       Side
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	Volume     float64
	Conditions []Condition
	Status     PlanStatus
	CreatedAt  time.Time
	CreatedBy  string
	ExpiresAt  time.Time
	Notes      string

	ClosedAt    time.Time
	CloseReason string
}

// Expired reports whether the plan has an expiry at or before now.
func (p *Plan) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Transition moves a pending plan into a terminal state exactly once.
func (p *Plan) Transition(to PlanStatus, at time.Time, reason string) error {
	if p.Status.Terminal() {
		return fmt.Errorf("plan %s is %s: %w", p.ID, p.Status, ErrPlanTerminal)
	}
	if !to.Terminal() {
		return fmt.Errorf("plan %s: %s is not a terminal status", p.ID, to)
	}
	p.Status = to
	p.ClosedAt = at
	p.CloseReason = reason
	return nil
}

// RiskReward is the planned reward over risk, or 0 when undefined.
func (p *Plan) RiskReward() float64 {
	risk := p.Entry - p.StopLoss
	reward := p.TakeProfit - p.Entry
	if p.Side == SideSell {
		risk, reward = -risk, -reward
	}
	if risk <= 0 {
		return 0
	}
	return reward / risk
}

// Clone returns a copy safe to hand outside the registry.
func (p *Plan) Clone() *Plan {
	cp := *p
	cp.Conditions = append([]Condition(nil), p.Conditions...)
	return &cp
}

// PlanEvaluation records the last engine decision for a plan.
type PlanEvaluation struct {
	PlanID       string                `json:"plan_id"`
	Symbol       string                `json:"symbol"`
	At           time.Time             `json:"at"`
	Decision     string                `json:"decision"`
	FailedChecks []string              `json:"failed_checks,omitempty"`
	Threshold    *ThresholdCalculation `json:"threshold,omitempty"`
	Confluence   *ConfluenceBreakdown  `json:"confluence,omitempty"`
	Strategy     StrategyKind          `json:"strategy,omitempty"`
}

// ExecutionEvent is emitted once when a plan executes.
type ExecutionEvent struct {
	PlanID     string       `json:"plan_id"`
	Symbol     string       `json:"symbol"`
	Side       Side         `json:"side"`
	Entry      float64      `json:"entry"`
	StopLoss   float64      `json:"stop_loss"`
	TakeProfit float64      `json:"take_profit"`
	Volume     float64      `json:"volume"`
	Session    Session      `json:"session"`
	Confluence float64      `json:"confluence"`
	Threshold  float64      `json:"threshold"`
	Strategy   StrategyKind `json:"strategy"`
	SignalAt   time.Time    `json:"signal_at"`
	EmittedAt  time.Time    `json:"emitted_at"`
	LatencyMs  int64        `json:"latency_ms"`
}
