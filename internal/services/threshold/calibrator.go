package threshold

import (
	"fmt"
	"math"

	"PlanSentry/internal/domain/models"
)

const (
	DefaultFloor   = 50.0
	DefaultCeiling = 95.0
	// DefaultBase seeds the session-adjusted fallback and the fixed fallback.
	DefaultBase = 70.0
	// DefaultSessionWeight is the exponent used for session defaults.
	DefaultSessionWeight = 0.5
)

// ProfileSource looks up per-symbol calibration inputs.
type ProfileSource interface {
	Get(symbol string) (models.AssetProfile, bool)
}

// BiasSource yields the session multiplier for a symbol.
type BiasSource interface {
	Bias(symbol string, session models.Session) (float64, bool)
}

// Calibrator computes symbol/session/volatility-adaptive thresholds:
//
//	volAdjusted = base * (1 + (volatilityRatio - 1) * volatilityWeight)
//	threshold   = clamp(volAdjusted * sessionBias^sessionWeight, floor, ceiling)
type Calibrator struct {
	profiles ProfileSource
	bias     BiasSource
	floor    float64
	ceiling  float64
	base     float64
}

type Option func(*Calibrator)

// WithBounds sets the clamp range.
func WithBounds(floor, ceiling float64) Option {
	return func(c *Calibrator) {
		if ceiling >= floor {
			c.floor, c.ceiling = floor, ceiling
		}
	}
}

// WithDefaultBase sets the base used by the fallbacks.
func WithDefaultBase(base float64) Option {
	return func(c *Calibrator) {
		if base > 0 {
			c.base = base
		}
	}
}

func New(profiles ProfileSource, bias BiasSource, opts ...Option) *Calibrator {
	c := &Calibrator{
		profiles: profiles,
		bias:     bias,
		floor:    DefaultFloor,
		ceiling:  DefaultCeiling,
		base:     DefaultBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calibrator) Bounds() (float64, float64) { return c.floor, c.ceiling }

// Formula evaluates the unclamped threshold.
func Formula(base, volatilityRatio, volatilityWeight, sessionBias, sessionWeight float64) (volAdjusted, raw float64) {
	volAdjusted = base * (1 + (volatilityRatio-1)*volatilityWeight)
	raw = volAdjusted * math.Pow(sessionBias, sessionWeight)
	return volAdjusted, raw
}

// ComputeThreshold calibrates the activation threshold from the symbol's
// profile. It fails with ErrCalibrationUnavailable when the profile or the
// session bias is missing.
func (c *Calibrator) ComputeThreshold(symbol string, session models.Session, volatilityRatio float64) (models.ThresholdCalculation, error) {
	if math.IsNaN(volatilityRatio) || math.IsInf(volatilityRatio, 0) || volatilityRatio < 0 {
		return models.ThresholdCalculation{}, models.NewDataError(models.ErrCalibrationUnavailable, symbol, "volatility ratio %v", volatilityRatio)
	}
	if c.profiles == nil || c.bias == nil {
		return models.ThresholdCalculation{}, models.NewDataError(models.ErrCalibrationUnavailable, symbol, "calibrator not configured")
	}
	p, ok := c.profiles.Get(symbol)
	if !ok {
		return models.ThresholdCalculation{}, models.NewDataError(models.ErrCalibrationUnavailable, symbol, "no asset profile")
	}
	bias, _ := c.bias.Bias(symbol, session)
	if bias <= 0 {
		return models.ThresholdCalculation{}, models.NewDataError(models.ErrCalibrationUnavailable, symbol, "no session bias for %s", session)
	}

	volAdj, raw := Formula(p.BaseConfidence, volatilityRatio, p.VolatilityWeight, bias, p.SessionWeight)
	return models.ThresholdCalculation{
		Symbol:           symbol,
		Session:          session,
		VolatilityRatio:  volatilityRatio,
		BaseConfidence:   p.BaseConfidence,
		VolatilityWeight: p.VolatilityWeight,
		SessionBias:      bias,
		SessionWeight:    p.SessionWeight,
		VolAdjusted:      volAdj,
		Raw:              raw,
		Threshold:        c.clamp(raw),
		Floor:            c.floor,
		Ceiling:          c.ceiling,
		Source:           models.SourceCalibrated,
	}, nil
}

// SessionDefault is the first fallback: the default base adjusted only by
// the session bias, ignoring volatility and the symbol's profile.
func (c *Calibrator) SessionDefault(symbol string, session models.Session) (models.ThresholdCalculation, error) {
	if c.bias == nil {
		return models.ThresholdCalculation{}, models.NewDataError(models.ErrCalibrationUnavailable, symbol, "no session bias source")
	}
	bias, _ := c.bias.Bias(symbol, session)
	if bias <= 0 {
		return models.ThresholdCalculation{}, models.NewDataError(models.ErrCalibrationUnavailable, symbol, "no session bias for %s", session)
	}
	volAdj, raw := Formula(c.base, 1, 0, bias, DefaultSessionWeight)
	return models.ThresholdCalculation{
		Symbol:          symbol,
		Session:         session,
		VolatilityRatio: 1,
		BaseConfidence:  c.base,
		SessionBias:     bias,
		SessionWeight:   DefaultSessionWeight,
		VolAdjusted:     volAdj,
		Raw:             raw,
		Threshold:       c.clamp(raw),
		Floor:           c.floor,
		Ceiling:         c.ceiling,
		Source:          models.SourceSessionDefault,
	}, nil
}

// Fixed is the last fallback: a constant threshold.
func Fixed(symbol string, session models.Session, value float64) models.ThresholdCalculation {
	return models.ThresholdCalculation{
		Symbol:          symbol,
		Session:         session,
		VolatilityRatio: 1,
		BaseConfidence:  value,
		SessionBias:     1,
		VolAdjusted:     value,
		Raw:             value,
		Threshold:       value,
		Floor:           value,
		Ceiling:         value,
		Source:          models.SourceFixedDefault,
	}
}

// ApplyShift adds an advisory shift capped at ±maxShift and re-clamps.
func ApplyShift(calc models.ThresholdCalculation, shift, maxShift float64) models.ThresholdCalculation {
	if math.IsNaN(shift) || maxShift <= 0 {
		return calc
	}
	shift = math.Max(-maxShift, math.Min(maxShift, shift))
	calc.AdvisoryShift = shift
	v := calc.Threshold + shift
	if calc.Floor < calc.Ceiling {
		v = math.Min(calc.Ceiling, math.Max(calc.Floor, v))
	}
	calc.Threshold = v
	return calc
}

func (c *Calibrator) clamp(v float64) float64 {
	return math.Min(c.ceiling, math.Max(c.floor, v))
}

// String renders a one-line breakdown for logs and CLI output.
func String(calc models.ThresholdCalculation) string {
	return fmt.Sprintf("%s/%s base=%.2f vr=%.3f vw=%.2f volAdj=%.2f bias=%.3f sw=%.2f raw=%.2f shift=%+.2f threshold=%.2f [%s]",
		calc.Symbol, calc.Session, calc.BaseConfidence, calc.VolatilityRatio, calc.VolatilityWeight,
		calc.VolAdjusted, calc.SessionBias, calc.SessionWeight, calc.Raw, calc.AdvisoryShift, calc.Threshold, calc.Source)
}
