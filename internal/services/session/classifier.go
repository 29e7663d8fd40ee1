package session

import (
	"math"
	"time"

	"PlanSentry/internal/domain/models"
)

// Window is a UTC hour range [StartHour, EndHour) mapped to a session.
type Window struct {
	Session   models.Session
	StartHour int
	EndHour   int
	Liquidity models.Liquidity
}

// DefaultWindows covers the full UTC day.
var DefaultWindows = []Window{
	{models.SessionAsian, 0, 7, models.LiquidityLow},
	{models.SessionLondon, 7, 12, models.LiquidityHigh},
	{models.SessionOverlap, 12, 16, models.LiquidityVeryHigh},
	{models.SessionNewYork, 16, 21, models.LiquidityHigh},
	{models.SessionLate, 21, 24, models.LiquidityLow},
}

// DefaultBias is used when the matrix has no entry for a symbol/session.
// Low-liquidity windows are stricter (>1), overlap is looser (<1).
var DefaultBias = map[models.Session]float64{
	models.SessionAsian:   1.10,
	models.SessionLondon:  0.95,
	models.SessionOverlap: 0.90,
	models.SessionNewYork: 0.95,
	models.SessionLate:    1.15,
}

const (
	DefaultBiasFloor   = 0.8
	DefaultBiasCeiling = 1.2
)

// BiasSource supplies per-symbol profiles and matrix entries.
type BiasSource interface {
	Get(symbol string) (models.AssetProfile, bool)
	Bias(symbol string, session models.Session) (float64, bool)
}

// Classifier maps timestamps to sessions and bias multipliers. It holds no
// mutable state beyond the loaded configuration.
type Classifier struct {
	src     BiasSource
	windows []Window
	floor   float64
	ceiling float64
}

type Option func(*Classifier)

// WithBiasBounds sets the clamp range for bias multipliers.
func WithBiasBounds(floor, ceiling float64) Option {
	return func(c *Classifier) {
		if floor > 0 && ceiling >= floor {
			c.floor, c.ceiling = floor, ceiling
		}
	}
}

func New(src BiasSource, opts ...Option) *Classifier {
	c := &Classifier{
		src:     src,
		windows: DefaultWindows,
		floor:   DefaultBiasFloor,
		ceiling: DefaultBiasCeiling,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionAt returns the session containing t (evaluated in UTC).
func (c *Classifier) SessionAt(t time.Time) (models.Session, models.Liquidity) {
	h := t.UTC().Hour()
	for _, w := range c.windows {
		if h >= w.StartHour && h < w.EndHour {
			return w.Session, w.Liquidity
		}
	}
	last := c.windows[len(c.windows)-1]
	return last.Session, last.Liquidity
}

// LiquidityOf returns the characteristic liquidity of a session.
func (c *Classifier) LiquidityOf(s models.Session) models.Liquidity {
	for _, w := range c.windows {
		if w.Session == s {
			return w.Liquidity
		}
	}
	return models.LiquidityLow
}

// Bias returns the clamped threshold multiplier for symbol in session.
// Sessions outside the symbol's applicable set get the strictest bias.
func (c *Classifier) Bias(symbol string, s models.Session) (float64, bool) {
	applicable := true
	if c.src != nil {
		if p, ok := c.src.Get(symbol); ok {
			applicable = p.AppliesTo(s)
		}
	}
	if !applicable {
		return c.ceiling, false
	}
	if c.src != nil {
		if v, ok := c.src.Bias(symbol, s); ok {
			return c.clamp(v), true
		}
	}
	v, ok := DefaultBias[s]
	if !ok {
		v = 1
	}
	return c.clamp(v), true
}

// Classify resolves session, liquidity and bias for symbol at t.
func (c *Classifier) Classify(symbol string, at time.Time) models.SessionInfo {
	s, liq := c.SessionAt(at)
	bias, applicable := c.Bias(symbol, s)
	return models.SessionInfo{Session: s, Liquidity: liq, Bias: bias, Applicable: applicable}
}

func (c *Classifier) clamp(v float64) float64 {
	return math.Min(c.ceiling, math.Max(c.floor, v))
}
