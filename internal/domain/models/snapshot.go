package models

import "time"

// Direction of a structural move.
type Direction string

const (
	DirectionNone    Direction = ""
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
)

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionBullish:
		return DirectionBearish
	case DirectionBearish:
		return DirectionBullish
	default:
		return DirectionNone
	}
}

type StructureKind string

const (
	StructureHigherHigh StructureKind = "higher_high"
	StructureLowerLow   StructureKind = "lower_low"
	StructureEqual      StructureKind = "equal"
	StructureChoppy     StructureKind = "choppy"
)

// StructureState is the dominant swing pattern of a window.
type StructureState struct {
	Kind          StructureKind `json:"kind"`
	RunLength     int           `json:"run_length"`
	Strength      float64       `json:"strength"`
	LastSwingHigh float64       `json:"last_swing_high"`
	LastSwingLow  float64       `json:"last_swing_low"`
	SwingHighs    int           `json:"swing_highs"`
	SwingLows     int           `json:"swing_lows"`
}

// BreakSignal is a CHOCH or BOS marker. Confirmed is only set once the
// required number of consecutive closes held beyond Level.
type BreakSignal struct {
	Detected    bool      `json:"detected"`
	Confirmed   bool      `json:"confirmed"`
	Direction   Direction `json:"direction,omitempty"`
	Level       float64   `json:"level,omitempty"`
	BarIndex    int       `json:"bar_index"`
	ConfirmBars int       `json:"confirm_bars"`
	Confidence  float64   `json:"confidence"`
}

// BreakState pairs the CHOCH and BOS markers of one window.
type BreakState struct {
	CHOCH          BreakSignal `json:"choch"`
	BOS            BreakSignal `json:"bos"`
	Combined       bool        `json:"combined"`
	RejectedBreaks int         `json:"rejected_breaks"`
}

type ZoneKind string

const (
	ZonePriorHigh  ZoneKind = "prior_high"
	ZonePriorLow   ZoneKind = "prior_low"
	ZoneEqualHighs ZoneKind = "equal_highs"
	ZoneEqualLows  ZoneKind = "equal_lows"
)

type LiquidityZone struct {
	Price   float64  `json:"price"`
	Kind    ZoneKind `json:"kind"`
	Touches int      `json:"touches"`
}

type Proximity string

const (
	ProximityNearHigh Proximity = "near_high"
	ProximityNearLow  Proximity = "near_low"
	ProximityBetween  Proximity = "between"
	ProximityAway     Proximity = "away"
)

type LiquidityState struct {
	Zones           []LiquidityZone `json:"zones"`
	Proximity       Proximity       `json:"proximity"`
	NearestZone     *LiquidityZone  `json:"nearest_zone,omitempty"`
	NearestDistance float64         `json:"nearest_distance_atr"`
	RelativeVolume  float64         `json:"relative_volume"`
}

type VolatilityRegime string

const (
	VolatilityExpanding   VolatilityRegime = "expanding"
	VolatilityContracting VolatilityRegime = "contracting"
	VolatilityStable      VolatilityRegime = "stable"
)

type VolatilityState struct {
	Regime          VolatilityRegime `json:"regime"`
	ATR             float64          `json:"atr"`
	MedianATR       float64          `json:"median_atr"`
	ChangePct       float64          `json:"change_pct"`
	CompressionBars int              `json:"compression_bars"`
	// RangeRatio is recent bar range over the rolling median range.
	RangeRatio float64 `json:"range_ratio"`
}

type WickCandidate struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Direction Direction `json:"direction"`
	Price     float64   `json:"price"`
	WickRatio float64   `json:"wick_ratio"`
}

type OrderBlock struct {
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index"`
	Direction  Direction `json:"direction"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	ImpulseATR float64   `json:"impulse_atr"`
}

type MomentumQuality string

const (
	MomentumStrong   MomentumQuality = "strong"
	MomentumModerate MomentumQuality = "moderate"
	MomentumWeak     MomentumQuality = "weak"
)

type MomentumState struct {
	Quality     MomentumQuality `json:"quality"`
	Direction   Direction       `json:"direction,omitempty"`
	Consistency float64         `json:"consistency_pct"`
	RSI         float64         `json:"rsi"`
	Divergence  bool            `json:"divergence"`
}

type TrendAlignment string

const (
	AlignmentStrong   TrendAlignment = "strong"
	AlignmentModerate TrendAlignment = "moderate"
	AlignmentWeak     TrendAlignment = "weak"
)

type TrendState struct {
	Alignment  TrendAlignment `json:"alignment"`
	Direction  Direction      `json:"direction,omitempty"`
	Confidence float64        `json:"confidence"`
	Windows    []Direction    `json:"windows"`
}

type VWAPBand string

const (
	BandAbove  VWAPBand = "above_band"
	BandBelow  VWAPBand = "below_band"
	BandInside VWAPBand = "inside_band"
)

type VWAPState struct {
	VWAP  float64  `json:"vwap"`
	Upper float64  `json:"upper"`
	Lower float64  `json:"lower"`
	Band  VWAPBand `json:"band"`
}

type Action string

const (
	ActionBuyConfirmed  Action = "buy_confirmed"
	ActionSellConfirmed Action = "sell_confirmed"
	ActionWait          Action = "wait"
	ActionAvoid         Action = "avoid"
)

// Confluence weights; the sub-scores below are already weighted so they
// sum to Total.
const (
	WeightTrend      = 25.0
	WeightMomentum   = 20.0
	WeightStructure  = 20.0
	WeightVolatility = 15.0
	WeightLiquidity  = 20.0
)

type ConfluenceBreakdown struct {
	Trend      float64 `json:"trend"`
	Momentum   float64 `json:"momentum"`
	Structure  float64 `json:"structure"`
	Volatility float64 `json:"volatility"`
	Liquidity  float64 `json:"liquidity"`
	Total      float64 `json:"total"`
	Grade      string  `json:"grade"`
	Action     Action  `json:"action"`
}

type StrategyKind string

const (
	StrategyRangeScalp        StrategyKind = "range_scalp"
	StrategyBreakout          StrategyKind = "breakout"
	StrategyMeanReversion     StrategyKind = "mean_reversion"
	StrategyTrendContinuation StrategyKind = "trend_continuation"
)

// Valid reports whether k is a known strategy label.
func (k StrategyKind) Valid() bool {
	switch k {
	case StrategyRangeScalp, StrategyBreakout, StrategyMeanReversion, StrategyTrendContinuation:
		return true
	}
	return false
}

// StrategyHint is the classifier label plus the rule that produced it.
type StrategyHint struct {
	Kind StrategyKind `json:"kind"`
	Rule string       `json:"rule"`
}

// StructuralSnapshot is the analysis of one bar window. It is never mutated;
// the next analysis for the symbol supersedes it.
type StructuralSnapshot struct {
	Symbol      string              `json:"symbol"`
	AsOf        time.Time           `json:"as_of"`
	Bars        int                 `json:"bars"`
	Close       float64             `json:"close"`
	Structure   StructureState      `json:"structure"`
	Breaks      BreakState          `json:"breaks"`
	Liquidity   LiquidityState      `json:"liquidity"`
	Volatility  VolatilityState     `json:"volatility"`
	Wicks       []WickCandidate     `json:"wicks"`
	OrderBlocks []OrderBlock        `json:"order_blocks"`
	Momentum    MomentumState       `json:"momentum"`
	Trend       TrendState          `json:"trend"`
	VWAP        VWAPState           `json:"vwap"`
	Confluence  ConfluenceBreakdown `json:"confluence"`
	Strategy    StrategyHint        `json:"strategy"`
	GeneratedAt time.Time           `json:"generated_at"`
	Age         time.Duration       `json:"age"`
	Stale       bool                `json:"stale"`
}
