package strategy

import "PlanSentry/internal/domain/models"

// Input is the key of the decision table.
type Input struct {
	Regime     models.VolatilityRegime
	Structure  models.StructureKind
	Divergence bool
	Band       models.VWAPBand
}

// FromSnapshot extracts the table key from a snapshot.
func FromSnapshot(s *models.StructuralSnapshot) Input {
	return Input{
		Regime:     s.Volatility.Regime,
		Structure:  s.Structure.Kind,
		Divergence: s.Momentum.Divergence,
		Band:       s.VWAP.Band,
	}
}

type rule struct {
	name  string
	kind  models.StrategyKind
	match func(Input) bool
}

func (in Input) trending() bool {
	return in.Structure == models.StructureHigherHigh || in.Structure == models.StructureLowerLow
}

func (in Input) outsideBand() bool {
	return in.Band == models.BandAbove || in.Band == models.BandBelow
}

// First match wins.
var table = []rule{
	{"divergence_at_band_extreme", models.StrategyMeanReversion, func(in Input) bool {
		return in.Divergence && in.outsideBand()
	}},
	{"expansion_beyond_band", models.StrategyBreakout, func(in Input) bool {
		return in.Regime == models.VolatilityExpanding && in.outsideBand()
	}},
	{"compression_in_trend", models.StrategyBreakout, func(in Input) bool {
		return in.Regime == models.VolatilityContracting && in.trending()
	}},
	{"aligned_structure", models.StrategyTrendContinuation, func(in Input) bool {
		return in.trending() && !in.Divergence
	}},
	{"band_extreme_in_range", models.StrategyMeanReversion, func(in Input) bool {
		return in.outsideBand()
	}},
	{"range_inside_band", models.StrategyRangeScalp, func(in Input) bool {
		return in.Regime != models.VolatilityExpanding
	}},
	{"unresolved_expansion", models.StrategyBreakout, func(in Input) bool {
		return true
	}},
}

// Classify returns the strategy label and the rule that produced it. It is a
// pure function of its input.
func Classify(in Input) models.StrategyHint {
	for _, r := range table {
		if r.match(in) {
			return models.StrategyHint{Kind: r.kind, Rule: r.name}
		}
	}
	return models.StrategyHint{Kind: models.StrategyRangeScalp, Rule: "default"}
}

// ClassifySnapshot labels a snapshot.
func ClassifySnapshot(s *models.StructuralSnapshot) models.StrategyHint {
	return Classify(FromSnapshot(s))
}
