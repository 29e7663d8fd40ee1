package structure

import (
	"PlanSentry/internal/domain/models"
	"PlanSentry/internal/services/features"
)

func (a *Analyzer) momentum(bars []models.Bar, highs, lows []swing) models.MomentumState {
	closes := features.Columns(bars).Close
	n := len(closes)
	look := min(a.params.MomentumLookback, n-1)
	st := models.MomentumState{Quality: models.MomentumWeak, RSI: 50}
	if look <= 0 {
		return st
	}

	up, down := 0, 0
	for i := n - look; i < n; i++ {
		switch {
		case closes[i] > closes[i-1]:
			up++
		case closes[i] < closes[i-1]:
			down++
		}
	}
	switch {
	case up > down:
		st.Direction = models.DirectionBullish
	case down > up:
		st.Direction = models.DirectionBearish
	}
	st.Consistency = 100 * float64(max(up, down)) / float64(look)

	rsi := features.RSI(closes, a.params.RSIPeriod)
	if rsi != nil {
		st.RSI = rsi[n-1]
	}
	gated := (st.Direction == models.DirectionBullish && st.RSI > a.params.RSIBull) ||
		(st.Direction == models.DirectionBearish && st.RSI < a.params.RSIBear)
	switch {
	case st.Consistency >= 70 && gated:
		st.Quality = models.MomentumStrong
	case st.Consistency >= 70 || (st.Consistency >= 60 && gated):
		st.Quality = models.MomentumModerate
	}
	st.Divergence = divergence(rsi, highs, lows, a.params.RSIPeriod)
	return st
}

// divergence compares the last two swings against RSI at the same bars:
// a higher high on lower RSI or a lower low on higher RSI.
func divergence(rsi []float64, highs, lows []swing, period int) bool {
	if rsi == nil {
		return false
	}
	if len(highs) >= 2 {
		p, c := highs[len(highs)-2], highs[len(highs)-1]
		if p.index >= period && c.price > p.price && rsi[c.index] < rsi[p.index] {
			return true
		}
	}
	if len(lows) >= 2 {
		p, c := lows[len(lows)-2], lows[len(lows)-1]
		if p.index >= period && c.price < p.price && rsi[c.index] > rsi[p.index] {
			return true
		}
	}
	return false
}

func (a *Analyzer) trend(bars []models.Bar, higher [][]models.Bar) models.TrendState {
	base := windowDirection(bars)
	windows := []models.Direction{base}
	for _, f := range a.params.HigherFactors {
		windows = append(windows, windowDirection(features.Aggregate(bars, f)))
	}
	for _, h := range higher {
		windows = append(windows, windowDirection(h))
	}

	st := models.TrendState{Alignment: models.AlignmentWeak, Direction: base, Windows: windows}
	if base == models.DirectionNone {
		return st
	}
	others := len(windows) - 1
	if others == 0 {
		st.Confidence = 50
		st.Alignment = models.AlignmentModerate
		return st
	}
	agree := 0
	for _, d := range windows[1:] {
		if d == base {
			agree++
		}
	}
	st.Confidence = 100 * float64(agree) / float64(others)
	switch {
	case agree == others:
		st.Alignment = models.AlignmentStrong
	case 2*agree >= others:
		st.Alignment = models.AlignmentModerate
	}
	return st
}

// windowDirection is bullish when the last close is above a rising EMA and
// bearish when below a falling one.
func windowDirection(bars []models.Bar) models.Direction {
	n := len(bars)
	if n < 3 {
		return models.DirectionNone
	}
	closes := features.Columns(bars).Close
	period := min(20, n/2)
	if period < 2 {
		period = 2
	}
	ema := features.EMA(closes, period)
	if ema == nil {
		return models.DirectionNone
	}
	back := min(3, n-period)
	cur, prev := ema[n-1], ema[n-1-back]
	c := closes[n-1]
	switch {
	case c > cur && cur > prev:
		return models.DirectionBullish
	case c < cur && cur < prev:
		return models.DirectionBearish
	}
	return models.DirectionNone
}
