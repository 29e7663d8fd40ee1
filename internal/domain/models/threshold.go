package models

type ThresholdSource string

const (
	SourceCalibrated     ThresholdSource = "calibrated"
	SourceSessionDefault ThresholdSource = "session_default"
	SourceFixedDefault   ThresholdSource = "fixed_default"
)

// ThresholdCalculation is the full breakdown of one activation threshold.
// Raw is the formula value before clamping into [Floor, Ceiling].
type ThresholdCalculation struct {
	Symbol           string          `json:"symbol"`
	Session          Session         `json:"session"`
	VolatilityRatio  float64         `json:"volatility_ratio"`
	BaseConfidence   float64         `json:"base_confidence"`
	VolatilityWeight float64         `json:"volatility_weight"`
	SessionBias      float64         `json:"session_bias"`
	SessionWeight    float64         `json:"session_weight"`
	VolAdjusted      float64         `json:"vol_adjusted"`
	Raw              float64         `json:"raw"`
	AdvisoryShift    float64         `json:"advisory_shift"`
	Threshold        float64         `json:"threshold"`
	Floor            float64         `json:"floor"`
	Ceiling          float64         `json:"ceiling"`
	Source           ThresholdSource `json:"source"`
}
