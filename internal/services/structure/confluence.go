package structure

import (
	"math"

	"PlanSentry/internal/domain/models"
)

// confluence blends the five sub-scores. Each factor is a [0,1] quality that
// is multiplied by its weight, so the total stays within [0,100].
func (a *Analyzer) confluence(s *models.StructuralSnapshot) models.ConfluenceBreakdown {
	dir := leadingDirection(s)

	trend := 0.1
	if s.Trend.Direction != models.DirectionNone {
		switch s.Trend.Alignment {
		case models.AlignmentStrong:
			trend = 1
		case models.AlignmentModerate:
			trend = 0.6
		default:
			trend = 0.25
		}
	}

	momentum := 0.25
	switch s.Momentum.Quality {
	case models.MomentumStrong:
		momentum = 1
	case models.MomentumModerate:
		momentum = 0.65
	}
	if s.Momentum.Divergence {
		momentum *= 0.7
	}

	structure := 0.15
	switch s.Structure.Kind {
	case models.StructureHigherHigh, models.StructureLowerLow:
		structure = 0.5 + 0.5*s.Structure.Strength/100
	case models.StructureEqual:
		structure = 0.4
	}
	for _, sig := range []models.BreakSignal{s.Breaks.CHOCH, s.Breaks.BOS} {
		if sig.Confirmed && sig.Direction == dir && dir != models.DirectionNone {
			structure += 0.2
			break
		}
	}

	volatility := 0.8
	switch s.Volatility.Regime {
	case models.VolatilityExpanding:
		volatility = 0.9
	case models.VolatilityContracting:
		volatility = 0.45
	}

	liquidity := 0.4
	switch s.Liquidity.Proximity {
	case models.ProximityNearHigh, models.ProximityNearLow:
		liquidity = 0.8
	case models.ProximityBetween:
		liquidity = 0.6
	}
	switch rv := s.Liquidity.RelativeVolume; {
	case rv >= 1.5:
		liquidity += 0.2
	case rv < 0.5:
		liquidity -= 0.2
	}

	b := models.ConfluenceBreakdown{
		Trend:      round2(clamp(trend, 0, 1) * models.WeightTrend),
		Momentum:   round2(clamp(momentum, 0, 1) * models.WeightMomentum),
		Structure:  round2(clamp(structure, 0, 1) * models.WeightStructure),
		Volatility: round2(clamp(volatility, 0, 1) * models.WeightVolatility),
		Liquidity:  round2(clamp(liquidity, 0, 1) * models.WeightLiquidity),
	}
	b.Total = round2(clamp(b.Trend+b.Momentum+b.Structure+b.Volatility+b.Liquidity, 0, 100))
	b.Grade = Grade(b.Total)
	b.Action = RecommendAction(b.Total, dir)
	return b
}

// leadingDirection prefers the trend, then momentum, then the most recent
// confirmed break.
func leadingDirection(s *models.StructuralSnapshot) models.Direction {
	if s.Trend.Direction != models.DirectionNone {
		return s.Trend.Direction
	}
	if s.Momentum.Direction != models.DirectionNone {
		return s.Momentum.Direction
	}
	if s.Breaks.BOS.Confirmed {
		return s.Breaks.BOS.Direction
	}
	if s.Breaks.CHOCH.Confirmed {
		return s.Breaks.CHOCH.Direction
	}
	return models.DirectionNone
}

// Grade maps a confluence total to a letter band.
func Grade(total float64) string {
	switch {
	case total >= 85:
		return "A"
	case total >= 70:
		return "B"
	case total >= 55:
		return "C"
	case total >= 40:
		return "D"
	}
	return "F"
}

// RecommendAction maps a confluence total and direction to an action band.
func RecommendAction(total float64, dir models.Direction) models.Action {
	switch {
	case total >= 70 && dir == models.DirectionBullish:
		return models.ActionBuyConfirmed
	case total >= 70 && dir == models.DirectionBearish:
		return models.ActionSellConfirmed
	case total >= 50:
		return models.ActionWait
	}
	return models.ActionAvoid
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
