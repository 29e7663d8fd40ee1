package models

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

type ConditionKind string

const (
	KindStructuralFlag ConditionKind = "structural_flag"
	KindPriceBand      ConditionKind = "price_band"
	KindStateMatch     ConditionKind = "state_match"
	KindStrategyMatch  ConditionKind = "strategy_match"
	KindConfluenceMin  ConditionKind = "confluence_min"
)

// Condition is one declared activation requirement of a plan.
// The set of implementations is closed: evaluators switch over the
// concrete types below.
type Condition interface {
	Kind() ConditionKind
	Spec() ConditionSpec
	String() string
	isCondition()
}

type StructuralFlag string

const (
	FlagCHOCH      StructuralFlag = "choch"
	FlagBOS        StructuralFlag = "bos"
	FlagCHOCHBOS   StructuralFlag = "choch_bos"
	FlagRejection  StructuralFlag = "rejection_wick"
	FlagOrderBlock StructuralFlag = "order_block"
)

// StructuralFlagCondition requires a confirmed structural marker, optionally
// in a given direction.
type StructuralFlagCondition struct {
	Flag      StructuralFlag
	Direction Direction
}

func (StructuralFlagCondition) Kind() ConditionKind { return KindStructuralFlag }
func (StructuralFlagCondition) isCondition()        {}
func (c StructuralFlagCondition) Spec() ConditionSpec {
	return ConditionSpec{Kind: KindStructuralFlag, Flag: string(c.Flag), Direction: string(c.Direction)}
}
func (c StructuralFlagCondition) String() string {
	if c.Direction == DirectionNone {
		return string(c.Flag)
	}
	return fmt.Sprintf("%s(%s)", c.Flag, c.Direction)
}

// PriceBandCondition requires the latest close inside [Min, Max].
type PriceBandCondition struct {
	Min float64
	Max float64
}

func (PriceBandCondition) Kind() ConditionKind { return KindPriceBand }
func (PriceBandCondition) isCondition()        {}
func (c PriceBandCondition) Spec() ConditionSpec {
	s := ConditionSpec{Kind: KindPriceBand}
	if !math.IsInf(c.Min, -1) {
		v := c.Min
		s.Min = &v
	}
	if !math.IsInf(c.Max, 1) {
		v := c.Max
		s.Max = &v
	}
	return s
}
func (c PriceBandCondition) String() string {
	return fmt.Sprintf("price in [%g, %g]", c.Min, c.Max)
}

// Contains reports whether price lies in the band.
func (c PriceBandCondition) Contains(price float64) bool {
	return price >= c.Min && price <= c.Max
}

type StateField string

const (
	FieldVolatilityRegime   StateField = "volatility_regime"
	FieldLiquidityProximity StateField = "liquidity_proximity"
	FieldMomentumQuality    StateField = "momentum_quality"
	FieldStructure          StateField = "structure"
	FieldTrendAlignment     StateField = "trend_alignment"
	FieldVWAPBand           StateField = "vwap_band"
)

// StateMatchCondition requires a snapshot label to equal Value.
type StateMatchCondition struct {
	Field StateField
	Value string
}

func (StateMatchCondition) Kind() ConditionKind { return KindStateMatch }
func (StateMatchCondition) isCondition()        {}
func (c StateMatchCondition) Spec() ConditionSpec {
	return ConditionSpec{Kind: KindStateMatch, Field: string(c.Field), Value: c.Value}
}
func (c StateMatchCondition) String() string {
	return fmt.Sprintf("%s=%s", c.Field, c.Value)
}

// StrategyMatchCondition requires the classifier label.
type StrategyMatchCondition struct {
	Strategy StrategyKind
}

func (StrategyMatchCondition) Kind() ConditionKind { return KindStrategyMatch }
func (StrategyMatchCondition) isCondition()        {}
func (c StrategyMatchCondition) Spec() ConditionSpec {
	return ConditionSpec{Kind: KindStrategyMatch, Strategy: string(c.Strategy)}
}
func (c StrategyMatchCondition) String() string {
	return "strategy=" + string(c.Strategy)
}

// ConfluenceMinCondition replaces the calibrated threshold comparison with
// an explicit minimum.
type ConfluenceMinCondition struct {
	Min float64
}

func (ConfluenceMinCondition) Kind() ConditionKind { return KindConfluenceMin }
func (ConfluenceMinCondition) isCondition()        {}
func (c ConfluenceMinCondition) Spec() ConditionSpec {
	v := c.Min
	return ConditionSpec{Kind: KindConfluenceMin, Min: &v}
}
func (c ConfluenceMinCondition) String() string {
	return fmt.Sprintf("confluence>=%g", c.Min)
}

// ConditionSpec is the wire form of a Condition.
type ConditionSpec struct {
	Kind      ConditionKind `json:"kind" validate:"required,oneof=structural_flag price_band state_match strategy_match confluence_min"`
	Flag      string        `json:"flag,omitempty"`
	Direction string        `json:"direction,omitempty"`
	Min       *float64      `json:"min,omitempty"`
	Max       *float64      `json:"max,omitempty"`
	Field     string        `json:"field,omitempty"`
	Value     string        `json:"value,omitempty"`
	Strategy  string        `json:"strategy,omitempty"`
}

// ParseCondition converts a wire spec into its typed condition.
func ParseCondition(s ConditionSpec) (Condition, error) {
	switch s.Kind {
	case KindStructuralFlag:
		flag := StructuralFlag(strings.ToLower(s.Flag))
		switch flag {
		case FlagCHOCH, FlagBOS, FlagCHOCHBOS, FlagRejection, FlagOrderBlock:
		default:
			return nil, fmt.Errorf("structural flag %q: %w", s.Flag, ErrUnknownCondition)
		}
		dir, err := parseDirection(s.Direction)
		if err != nil {
			return nil, err
		}
		return StructuralFlagCondition{Flag: flag, Direction: dir}, nil

	case KindPriceBand:
		c := PriceBandCondition{Min: math.Inf(-1), Max: math.Inf(1)}
		if s.Min != nil {
			c.Min = *s.Min
		}
		if s.Max != nil {
			c.Max = *s.Max
		}
		if s.Min == nil && s.Max == nil {
			return nil, fmt.Errorf("price band needs min or max")
		}
		if c.Min > c.Max {
			return nil, fmt.Errorf("price band min %g above max %g", c.Min, c.Max)
		}
		return c, nil

	case KindStateMatch:
		field := StateField(strings.ToLower(s.Field))
		if err := validateStateValue(field, s.Value); err != nil {
			return nil, err
		}
		return StateMatchCondition{Field: field, Value: strings.ToLower(s.Value)}, nil

	case KindStrategyMatch:
		k := StrategyKind(strings.ToLower(s.Strategy))
		if !k.Valid() {
			return nil, fmt.Errorf("strategy %q: %w", s.Strategy, ErrUnknownCondition)
		}
		return StrategyMatchCondition{Strategy: k}, nil

	case KindConfluenceMin:
		if s.Min == nil || *s.Min < 0 || *s.Min > 100 {
			return nil, fmt.Errorf("confluence_min needs min in [0,100]")
		}
		return ConfluenceMinCondition{Min: *s.Min}, nil
	}
	return nil, fmt.Errorf("kind %q: %w", s.Kind, ErrUnknownCondition)
}

// ParseConditions parses every spec, failing on the first bad one.
func ParseConditions(specs []ConditionSpec) ([]Condition, error) {
	out := make([]Condition, 0, len(specs))
	for i, s := range specs {
		c, err := ParseCondition(s)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ConditionsFromMap accepts the flat name->value form used by chat tooling
// and older plan producers, e.g. {"choch_bull": true, "min_confluence": 72,
// "price_near": 2650, "tolerance": 5, "strategy_type": "breakout"}.
func ConditionsFromMap(m map[string]interface{}) ([]Condition, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Condition
	for _, key := range keys {
		raw := m[key]
		k := strings.ToLower(key)
		switch k {
		case "tolerance":
			continue
		case "choch", "bos", "choch_bos", "rejection_wick", "order_block":
			dir, on, err := flagValue(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			if on {
				out = append(out, StructuralFlagCondition{Flag: StructuralFlag(k), Direction: dir})
			}
		case "choch_bull", "choch_bear", "bos_bull", "bos_bear":
			on, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("%s: expected bool", key)
			}
			if on {
				flag, dir := splitDirectionalKey(k)
				out = append(out, StructuralFlagCondition{Flag: flag, Direction: dir})
			}
		case "price_above", "price_below", "price_near":
			v, err := toFloat(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			band := PriceBandCondition{Min: math.Inf(-1), Max: math.Inf(1)}
			switch k {
			case "price_above":
				band.Min = v
			case "price_below":
				band.Max = v
			default:
				tol := 0.0
				if t, ok := m["tolerance"]; ok {
					if tol, err = toFloat(t); err != nil {
						return nil, fmt.Errorf("tolerance: %w", err)
					}
				}
				band.Min, band.Max = v-tol, v+tol
			}
			out = append(out, band)
		case "min_confluence", "confluence_min":
			v, err := toFloat(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			c, err := ParseCondition(ConditionSpec{Kind: KindConfluenceMin, Min: &v})
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		case "strategy", "strategy_type":
			c, err := ParseCondition(ConditionSpec{Kind: KindStrategyMatch, Strategy: fmt.Sprint(raw)})
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		case string(FieldVolatilityRegime), "volatility_state", string(FieldLiquidityProximity),
			string(FieldMomentumQuality), string(FieldStructure), string(FieldTrendAlignment), string(FieldVWAPBand):
			field := StateField(k)
			if k == "volatility_state" {
				field = FieldVolatilityRegime
			}
			c, err := ParseCondition(ConditionSpec{Kind: KindStateMatch, Field: string(field), Value: fmt.Sprint(raw)})
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		default:
			return nil, fmt.Errorf("condition %q: %w", key, ErrUnknownCondition)
		}
	}
	return out, nil
}

func parseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "":
		return DirectionNone, nil
	case "bullish", "bull", "buy", "long":
		return DirectionBullish, nil
	case "bearish", "bear", "sell", "short":
		return DirectionBearish, nil
	}
	return DirectionNone, fmt.Errorf("direction %q: %w", s, ErrUnknownCondition)
}

func validateStateValue(field StateField, value string) error {
	v := strings.ToLower(value)
	var allowed []string
	switch field {
	case FieldVolatilityRegime:
		allowed = []string{string(VolatilityExpanding), string(VolatilityContracting), string(VolatilityStable)}
	case FieldLiquidityProximity:
		allowed = []string{string(ProximityNearHigh), string(ProximityNearLow), string(ProximityBetween), string(ProximityAway)}
	case FieldMomentumQuality:
		allowed = []string{string(MomentumStrong), string(MomentumModerate), string(MomentumWeak)}
	case FieldStructure:
		allowed = []string{string(StructureHigherHigh), string(StructureLowerLow), string(StructureEqual), string(StructureChoppy)}
	case FieldTrendAlignment:
		allowed = []string{string(AlignmentStrong), string(AlignmentModerate), string(AlignmentWeak)}
	case FieldVWAPBand:
		allowed = []string{string(BandAbove), string(BandBelow), string(BandInside)}
	default:
		return fmt.Errorf("state field %q: %w", field, ErrUnknownCondition)
	}
	for _, a := range allowed {
		if a == v {
			return nil
		}
	}
	return fmt.Errorf("%s value %q not one of %s: %w", field, value, strings.Join(allowed, ","), ErrUnknownCondition)
}

func flagValue(raw interface{}) (Direction, bool, error) {
	switch v := raw.(type) {
	case bool:
		return DirectionNone, v, nil
	case string:
		d, err := parseDirection(v)
		return d, true, err
	}
	return DirectionNone, false, fmt.Errorf("expected bool or direction, got %T", raw)
}

func splitDirectionalKey(k string) (StructuralFlag, Direction) {
	i := strings.LastIndex(k, "_")
	dir := DirectionBullish
	if k[i+1:] == "bear" {
		dir = DirectionBearish
	}
	return StructuralFlag(k[:i]), dir
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("expected number, got %T", raw)
}
