package structure

import (
	"math"

	"PlanSentry/internal/domain/models"
	"PlanSentry/internal/services/features"
)

func (a *Analyzer) volatility(bars []models.Bar, atr []float64) models.VolatilityState {
	valid := atr
	if p := a.params.ATRPeriod; p > 0 && len(atr) > p {
		valid = atr[p:]
	}
	st := models.VolatilityState{
		Regime:     models.VolatilityStable,
		RangeRatio: features.RangeRatio(bars, a.params.RangeRecent),
	}
	if len(valid) == 0 {
		return st
	}
	st.ATR = valid[len(valid)-1]
	st.MedianATR = features.Median(valid)
	if st.MedianATR <= 0 {
		return st
	}
	ratio := st.ATR / st.MedianATR
	st.ChangePct = (ratio - 1) * 100
	switch {
	case ratio > a.params.ExpandRatio:
		st.Regime = models.VolatilityExpanding
	case ratio < a.params.ContractRatio:
		st.Regime = models.VolatilityContracting
	}
	for i := len(valid) - 1; i >= 0 && valid[i] < st.MedianATR*a.params.ContractRatio; i-- {
		st.CompressionBars++
	}
	return st
}

// wicks flags rejection candles in the recent lookback: a wick at least
// WickBodyRatio times the body and WickRangeRatio of the range.
func (a *Analyzer) wicks(bars []models.Bar) []models.WickCandidate {
	start := max(len(bars)-a.params.PatternLookback, 0)
	var out []models.WickCandidate
	for i := start; i < len(bars); i++ {
		b := bars[i]
		r := b.Range()
		if r <= 0 {
			continue
		}
		body := b.Body()
		lw, uw := b.LowerWick(), b.UpperWick()
		switch {
		case lw >= a.params.WickBodyRatio*body && lw >= a.params.WickRangeRatio*r:
			out = append(out, models.WickCandidate{
				Index: i, Timestamp: b.Timestamp, Direction: models.DirectionBullish, Price: b.Low, WickRatio: lw / r,
			})
		case uw >= a.params.WickBodyRatio*body && uw >= a.params.WickRangeRatio*r:
			out = append(out, models.WickCandidate{
				Index: i, Timestamp: b.Timestamp, Direction: models.DirectionBearish, Price: b.High, WickRatio: uw / r,
			})
		}
	}
	return out
}

// orderBlocks finds BaseBars of tight consolidation, no wider than one ATR,
// followed by an impulse bar of at least ImpulseATR with a dominant body.
func (a *Analyzer) orderBlocks(bars []models.Bar, atr []float64) []models.OrderBlock {
	m := a.params.BaseBars
	if m < 1 {
		return nil
	}
	start := max(len(bars)-a.params.PatternLookback*2, m)
	var out []models.OrderBlock
	for i := start; i < len(bars); i++ {
		ref := atrAt(atr, i-1)
		if ref <= 0 {
			continue
		}
		impulse := bars[i]
		r := impulse.Range()
		if r < a.params.ImpulseATR*ref || impulse.Body() < 0.5*r {
			continue
		}
		base := bars[i-m : i]
		hi, lo := base[0].High, base[0].Low
		for _, b := range base[1:] {
			hi = math.Max(hi, b.High)
			lo = math.Min(lo, b.Low)
		}
		if hi-lo > ref {
			continue
		}
		dir := models.DirectionBearish
		if impulse.Bullish() {
			dir = models.DirectionBullish
		}
		out = append(out, models.OrderBlock{
			StartIndex: i - m,
			EndIndex:   i - 1,
			Direction:  dir,
			High:       hi,
			Low:        lo,
			ImpulseATR: r / ref,
		})
	}
	if k := a.params.MaxOrderBlocks; k > 0 && len(out) > k {
		out = out[len(out)-k:]
	}
	return out
}
