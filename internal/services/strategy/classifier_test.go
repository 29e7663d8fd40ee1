package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"PlanSentry/internal/domain/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want models.StrategyKind
		rule string
	}{
		{
			name: "divergence above band",
			in:   Input{Regime: models.VolatilityStable, Structure: models.StructureHigherHigh, Divergence: true, Band: models.BandAbove},
			want: models.StrategyMeanReversion,
			rule: "divergence_at_band_extreme",
		},
		{
			name: "expansion below band",
			in:   Input{Regime: models.VolatilityExpanding, Structure: models.StructureLowerLow, Band: models.BandBelow},
			want: models.StrategyBreakout,
			rule: "expansion_beyond_band",
		},
		{
			name: "squeeze inside trend",
			in:   Input{Regime: models.VolatilityContracting, Structure: models.StructureHigherHigh, Band: models.BandInside},
			want: models.StrategyBreakout,
			rule: "compression_in_trend",
		},
		{
			name: "clean uptrend",
			in:   Input{Regime: models.VolatilityStable, Structure: models.StructureHigherHigh, Band: models.BandInside},
			want: models.StrategyTrendContinuation,
			rule: "aligned_structure",
		},
		{
			name: "choppy at upper band",
			in:   Input{Regime: models.VolatilityStable, Structure: models.StructureChoppy, Band: models.BandAbove},
			want: models.StrategyMeanReversion,
			rule: "band_extreme_in_range",
		},
		{
			name: "equal highs inside band",
			in:   Input{Regime: models.VolatilityContracting, Structure: models.StructureEqual, Band: models.BandInside},
			want: models.StrategyRangeScalp,
			rule: "range_inside_band",
		},
		{
			name: "expanding chop inside band",
			in:   Input{Regime: models.VolatilityExpanding, Structure: models.StructureChoppy, Band: models.BandInside},
			want: models.StrategyBreakout,
			rule: "unresolved_expansion",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.rule, got.Rule)
			assert.Equal(t, got, Classify(tt.in), "deterministic")
		})
	}
}

func TestClassifySnapshot(t *testing.T) {
	snap := &models.StructuralSnapshot{
		Structure:  models.StructureState{Kind: models.StructureLowerLow},
		Volatility: models.VolatilityState{Regime: models.VolatilityStable},
		VWAP:       models.VWAPState{Band: models.BandInside},
	}
	assert.Equal(t, models.StrategyTrendContinuation, ClassifySnapshot(snap).Kind)
}
