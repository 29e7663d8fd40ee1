package models

// Requests for plan/snapshot HTTP endpoints. Defined in domain for reuse by
// the Kafka command handler.

type CreatePlanRequest struct {
	Symbol        string                 `json:"symbol" validate:"required,symbol"`
	Side          string                 `json:"side" validate:"required,oneof=buy sell"`
	Entry         float64                `json:"entry" validate:"gt=0"`
	StopLoss      float64                `json:"stop_loss" validate:"gt=0"`
	TakeProfit    float64                `json:"take_profit" validate:"gt=0"`
	Volume        float64                `json:"volume" default:"0.01" validate:"gt=0"`
	Conditions    []ConditionSpec        `json:"conditions" validate:"dive"`
	ConditionsMap map[string]interface{} `json:"conditions_map,omitempty"`
	ExpiresIn     string                 `json:"expires_in,omitempty" validate:"omitempty,duration"`
	Notes         string                 `json:"notes,omitempty" validate:"max=512"`
}

type PlanListRequest struct {
	Status string `query:"status" validate:"omitempty,oneof=pending executed expired cancelled"`
	Symbol string `query:"symbol"`
}

type ThresholdRequest struct {
	Symbol          string  `query:"symbol" validate:"required,symbol"`
	VolatilityRatio float64 `query:"vr" validate:"gte=0"`
	At              string  `query:"at" validate:"omitempty,rfc3339"`
}

type OutcomeRequest struct {
	PlanID             string  `json:"plan_id" validate:"required"`
	Symbol             string  `json:"symbol" validate:"required,symbol"`
	Session            string  `json:"session" validate:"omitempty,oneof=asian london overlap new_york late"`
	ConfluenceAtSignal float64 `json:"confluence_at_signal" validate:"gte=0,lte=100"`
	Result             string  `json:"result" validate:"required,oneof=win loss breakeven no_trade"`
	RiskReward         float64 `json:"risk_reward"`
	LatencyMs          int64   `json:"latency_ms" validate:"gte=0"`
}
