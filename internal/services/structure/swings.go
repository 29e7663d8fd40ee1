package structure

import (
	"math"

	"PlanSentry/internal/domain/models"
)

type swing struct {
	index int
	price float64
}

// findSwings returns pivot highs and lows: bars whose high (low) is strictly
// above (below) the k bars on each side.
func findSwings(bars []models.Bar, k int) (highs, lows []swing) {
	if k < 1 {
		k = 1
	}
	for i := k; i < len(bars)-k; i++ {
		isHigh, isLow := true, true
		for j := i - k; j <= i+k && (isHigh || isLow); j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				isHigh = false
			}
			if bars[j].Low <= bars[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, swing{index: i, price: bars[i].High})
		}
		if isLow {
			lows = append(lows, swing{index: i, price: bars[i].Low})
		}
	}
	return highs, lows
}

// trailingRun counts consecutive steps from the end of s where cmp holds.
func trailingRun(s []swing, cmp func(prev, cur float64) bool) int {
	run := 0
	for i := len(s) - 1; i > 0; i-- {
		if !cmp(s[i-1].price, s[i].price) {
			break
		}
		run++
	}
	return run
}

func classifyStructure(highs, lows []swing, tol float64) models.StructureState {
	st := models.StructureState{Kind: models.StructureChoppy, SwingHighs: len(highs), SwingLows: len(lows)}
	if len(highs) > 0 {
		st.LastSwingHigh = highs[len(highs)-1].price
	}
	if len(lows) > 0 {
		st.LastSwingLow = lows[len(lows)-1].price
	}

	higher := func(prev, cur float64) bool { return cur > prev+tol }
	lower := func(prev, cur float64) bool { return cur < prev-tol }
	equal := func(prev, cur float64) bool { return math.Abs(cur-prev) <= tol }

	hh, hl := trailingRun(highs, higher), trailingRun(lows, higher)
	lh, ll := trailingRun(highs, lower), trailingRun(lows, lower)
	bull, bear := hh+hl, lh+ll
	eq := max(trailingRun(highs, equal), trailingRun(lows, equal))

	switch {
	case bull >= 2 && bull > bear && hh > 0:
		st.Kind = models.StructureHigherHigh
		st.RunLength = bull
		st.Strength = clamp(float64(bull)*25, 0, 100)
	case bear >= 2 && bear > bull && ll > 0:
		st.Kind = models.StructureLowerLow
		st.RunLength = bear
		st.Strength = clamp(float64(bear)*25, 0, 100)
	case eq > 0:
		st.Kind = models.StructureEqual
		st.RunLength = eq
		st.Strength = 50
	default:
		st.RunLength = 0
		st.Strength = 0
	}
	return st
}

// inferTrend reads a direction from the last two known swing highs and lows.
func inferTrend(highs, lows []swing) models.Direction {
	if len(highs) < 2 || len(lows) < 2 {
		return models.DirectionNone
	}
	h0, h1 := highs[len(highs)-2].price, highs[len(highs)-1].price
	l0, l1 := lows[len(lows)-2].price, lows[len(lows)-1].price
	switch {
	case h1 > h0 && l1 > l0:
		return models.DirectionBullish
	case h1 < h0 && l1 < l0:
		return models.DirectionBearish
	}
	return models.DirectionNone
}

type breakCandidate struct {
	dir   models.Direction
	level float64
	start int
	count int
	choch bool
}

type confirmedBreak struct {
	signal models.BreakSignal
	at     int
}

// detectBreaks replays the window bar by bar. A swing only becomes a break
// level once k bars have printed after it. A close beyond the active level
// opens a candidate; it is confirmed after ConfirmBars consecutive closes
// beyond the level and rejected as soon as a close falls back. A break
// against the prevailing trend is a CHOCH, one with it a BOS.
func (a *Analyzer) detectBreaks(bars []models.Bar, highs, lows []swing, atr []float64) models.BreakState {
	k := a.params.SwingStrength
	need := max(a.params.ConfirmBars, 1)

	var (
		st             models.BreakState
		trend          models.Direction
		knownH, knownL []swing
		hi, lo         int
		levelH, levelL float64
		hasH, hasL     bool
		cand           *breakCandidate
		lastCHOCH      *confirmedBreak
		lastBOS        *confirmedBreak
	)

	confirm := func(c *breakCandidate, i int) {
		sig := models.BreakSignal{
			Detected:    true,
			Confirmed:   true,
			Direction:   c.dir,
			Level:       c.level,
			BarIndex:    c.start,
			ConfirmBars: c.count,
			Confidence:  breakConfidence(bars[i].Close, c.level, atrAt(atr, i)),
		}
		if c.choch {
			lastCHOCH = &confirmedBreak{signal: sig, at: i}
		} else {
			lastBOS = &confirmedBreak{signal: sig, at: i}
		}
		trend = c.dir
		if c.dir == models.DirectionBullish {
			hasH = false
		} else {
			hasL = false
		}
	}

	for i := range bars {
		for hi < len(highs) && highs[hi].index+k <= i {
			knownH = append(knownH, highs[hi])
			levelH, hasH = highs[hi].price, true
			hi++
		}
		for lo < len(lows) && lows[lo].index+k <= i {
			knownL = append(knownL, lows[lo])
			levelL, hasL = lows[lo].price, true
			lo++
		}
		if trend == models.DirectionNone {
			trend = inferTrend(knownH, knownL)
		}

		c := bars[i].Close
		if cand != nil {
			beyond := (cand.dir == models.DirectionBullish && c > cand.level) ||
				(cand.dir == models.DirectionBearish && c < cand.level)
			if beyond {
				cand.count++
				if cand.count >= need {
					confirm(cand, i)
					cand = nil
				}
				continue
			}
			st.RejectedBreaks++
			cand = nil
		}

		switch {
		case hasH && c > levelH:
			cand = &breakCandidate{dir: models.DirectionBullish, level: levelH, start: i, count: 1, choch: trend == models.DirectionBearish}
		case hasL && c < levelL:
			cand = &breakCandidate{dir: models.DirectionBearish, level: levelL, start: i, count: 1, choch: trend == models.DirectionBullish}
		}
		if cand != nil && cand.count >= need {
			confirm(cand, i)
			cand = nil
		}
	}

	cutoff := len(bars) - a.params.SignalLookback
	if lastCHOCH != nil && (a.params.SignalLookback <= 0 || lastCHOCH.at >= cutoff) {
		st.CHOCH = lastCHOCH.signal
	}
	if lastBOS != nil && (a.params.SignalLookback <= 0 || lastBOS.at >= cutoff) {
		st.BOS = lastBOS.signal
	}
	if cand != nil {
		pending := models.BreakSignal{
			Detected:    true,
			Direction:   cand.dir,
			Level:       cand.level,
			BarIndex:    cand.start,
			ConfirmBars: cand.count,
		}
		if cand.choch && !st.CHOCH.Confirmed {
			st.CHOCH = pending
		} else if !cand.choch && !st.BOS.Confirmed {
			st.BOS = pending
		}
	}
	st.Combined = st.CHOCH.Confirmed && st.BOS.Confirmed &&
		st.CHOCH.Direction == st.BOS.Direction &&
		st.BOS.BarIndex >= st.CHOCH.BarIndex
	return st
}

func atrAt(atr []float64, i int) float64 {
	if i < 0 || i >= len(atr) {
		return 0
	}
	return atr[i]
}

// breakConfidence scales with how far the confirming close sits beyond the
// level, in ATR units, from 50 up to 100 at two ATRs.
func breakConfidence(close, level, atr float64) float64 {
	if atr <= 0 {
		return 60
	}
	pen := math.Abs(close-level) / atr
	return clamp(50+25*math.Min(pen, 2), 0, 100)
}
