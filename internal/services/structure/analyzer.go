package structure

import (
	"fmt"
	"math"
	"time"

	"PlanSentry/internal/domain/models"
	"PlanSentry/internal/services/features"
)

// Params tunes the geometric tests of the analyzer.
type Params struct {
	MinBars          int
	SwingStrength    int
	ConfirmBars      int
	SignalLookback   int
	ATRPeriod        int
	RSIPeriod        int
	MomentumLookback int
	RangeRecent      int
	ExpandRatio      float64
	ContractRatio    float64
	EqualTolerance   float64 // ATR fraction for equal swings
	ZoneTolerance    float64 // ATR fraction for touch clustering
	ZonePeriod       int
	ProximityATR     float64
	PatternLookback  int
	WickBodyRatio    float64
	WickRangeRatio   float64
	ImpulseATR       float64
	BaseBars         int
	MaxOrderBlocks   int
	RSIBull          float64
	RSIBear          float64
	HigherFactors    []int
	StaleAfter       time.Duration
}

func DefaultParams() Params {
	return Params{
		MinBars:          30,
		SwingStrength:    2,
		ConfirmBars:      3,
		SignalLookback:   20,
		ATRPeriod:        14,
		RSIPeriod:        14,
		MomentumLookback: 10,
		RangeRecent:      5,
		ExpandRatio:      1.2,
		ContractRatio:    0.8,
		EqualTolerance:   0.1,
		ZoneTolerance:    0.25,
		ZonePeriod:       20,
		ProximityATR:     0.5,
		PatternLookback:  20,
		WickBodyRatio:    2,
		WickRangeRatio:   0.6,
		ImpulseATR:       1.5,
		BaseBars:         3,
		MaxOrderBlocks:   5,
		RSIBull:          55,
		RSIBear:          45,
		HigherFactors:    []int{3, 6},
		StaleAfter:       3 * time.Minute,
	}
}

// Input is one analysis request.
type Input struct {
	Symbol    string
	Bars      []models.Bar
	VWAPSigma float64
	// Higher optionally carries externally sourced higher-window bars for
	// trend alignment, in addition to the aggregated ones.
	Higher [][]models.Bar
}

// Analyzer turns a bar window into a StructuralSnapshot. It holds no state
// between calls and is safe for concurrent use.
type Analyzer struct {
	params Params
	now    func() time.Time
}

type Option func(*Analyzer)

func WithParams(p Params) Option {
	return func(a *Analyzer) { a.params = p }
}

func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func WithStaleAfter(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.params.StaleAfter = d
		}
	}
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{params: DefaultParams(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.params.MinBars < 2*a.params.SwingStrength+1 {
		a.params.MinBars = 2*a.params.SwingStrength + 1
	}
	return a
}

func (a *Analyzer) Params() Params { return a.params }

// Analyze computes the full snapshot. Windows shorter than MinBars fail with
// ErrInsufficientData.
func (a *Analyzer) Analyze(in Input) (*models.StructuralSnapshot, error) {
	n := len(in.Bars)
	if n < a.params.MinBars {
		return nil, models.NewDataError(models.ErrInsufficientData, in.Symbol, "have %d bars, need %d", n, a.params.MinBars)
	}
	for i := 1; i < n; i++ {
		if !in.Bars[i].Timestamp.After(in.Bars[i-1].Timestamp) {
			return nil, fmt.Errorf("analyze %s: bars not strictly ordered at %d", in.Symbol, i)
		}
	}
	sigma := in.VWAPSigma
	if sigma <= 0 {
		sigma = 2
	}

	bars := in.Bars
	last := bars[n-1]
	atrSeries := features.ATR(bars, a.params.ATRPeriod)
	atr := atrSeries[n-1]
	highs, lows := findSwings(bars, a.params.SwingStrength)

	snap := &models.StructuralSnapshot{
		Symbol: in.Symbol,
		AsOf:   last.Timestamp,
		Bars:   n,
		Close:  last.Close,
	}
	snap.Structure = classifyStructure(highs, lows, a.params.EqualTolerance*atr)
	snap.Breaks = a.detectBreaks(bars, highs, lows, atrSeries)
	snap.Liquidity = a.liquidity(bars, highs, lows, atr)
	snap.Volatility = a.volatility(bars, atrSeries)
	snap.Wicks = a.wicks(bars)
	snap.OrderBlocks = a.orderBlocks(bars, atrSeries)
	snap.Momentum = a.momentum(bars, highs, lows)
	snap.Trend = a.trend(bars, in.Higher)

	vwap, upper, lower := features.VWAPBand(bars, sigma)
	snap.VWAP = models.VWAPState{VWAP: vwap, Upper: upper, Lower: lower, Band: models.BandInside}
	switch {
	case last.Close > upper:
		snap.VWAP.Band = models.BandAbove
	case last.Close < lower:
		snap.VWAP.Band = models.BandBelow
	}

	snap.Confluence = a.confluence(snap)

	now := a.now()
	snap.GeneratedAt = now
	snap.Age = now.Sub(last.Timestamp)
	if snap.Age < 0 {
		snap.Age = 0
	}
	snap.Stale = a.params.StaleAfter > 0 && snap.Age > a.params.StaleAfter
	return snap, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
