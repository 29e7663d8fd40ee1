package structure

import (
	"math"
	"sort"

	"PlanSentry/internal/domain/models"
	"PlanSentry/internal/services/features"
)

func (a *Analyzer) liquidity(bars []models.Bar, highs, lows []swing, atr float64) models.LiquidityState {
	n := len(bars)
	tol := a.params.ZoneTolerance * atr
	var zones []models.LiquidityZone

	if period := a.params.ZonePeriod; period > 0 && n > period {
		prior := bars[:n-period]
		ph, pl := prior[0].High, prior[0].Low
		for _, b := range prior[1:] {
			ph = math.Max(ph, b.High)
			pl = math.Min(pl, b.Low)
		}
		zones = append(zones,
			models.LiquidityZone{Price: ph, Kind: models.ZonePriorHigh, Touches: countTouches(bars, ph, tol, true)},
			models.LiquidityZone{Price: pl, Kind: models.ZonePriorLow, Touches: countTouches(bars, pl, tol, false)},
		)
	}
	zones = append(zones, clusterSwings(highs, tol, models.ZoneEqualHighs)...)
	zones = append(zones, clusterSwings(lows, tol, models.ZoneEqualLows)...)

	st := models.LiquidityState{
		Zones:          zones,
		Proximity:      models.ProximityAway,
		RelativeVolume: features.RelativeVolume(bars),
	}
	if len(zones) == 0 {
		return st
	}

	c := bars[n-1].Close
	nearest := 0
	for i := range zones {
		if math.Abs(c-zones[i].Price) < math.Abs(c-zones[nearest].Price) {
			nearest = i
		}
	}
	z := zones[nearest]
	st.NearestZone = &z
	dist := math.Abs(c - z.Price)
	switch {
	case atr > 0:
		st.NearestDistance = dist / atr
	case dist == 0:
		st.NearestDistance = 0
	default:
		st.NearestDistance = math.Inf(1)
	}

	if st.NearestDistance <= a.params.ProximityATR {
		if isHighZone(z.Kind) {
			st.Proximity = models.ProximityNearHigh
		} else {
			st.Proximity = models.ProximityNearLow
		}
		return st
	}
	above, below := false, false
	for _, zone := range zones {
		if isHighZone(zone.Kind) && zone.Price > c {
			above = true
		}
		if !isHighZone(zone.Kind) && zone.Price < c {
			below = true
		}
	}
	if above && below {
		st.Proximity = models.ProximityBetween
	}
	// math.Inf is not JSON encodable
	if math.IsInf(st.NearestDistance, 0) {
		st.NearestDistance = -1
	}
	return st
}

func isHighZone(k models.ZoneKind) bool {
	return k == models.ZonePriorHigh || k == models.ZoneEqualHighs
}

func countTouches(bars []models.Bar, price, tol float64, high bool) int {
	touches := 0
	for _, b := range bars {
		v := b.Low
		if high {
			v = b.High
		}
		if math.Abs(v-price) <= tol {
			touches++
		}
	}
	return touches
}

// clusterSwings groups swing prices lying within tol of the cluster's first
// member. Clusters with at least two swings become zones.
func clusterSwings(s []swing, tol float64, kind models.ZoneKind) []models.LiquidityZone {
	if len(s) < 2 {
		return nil
	}
	prices := make([]float64, len(s))
	for i, sw := range s {
		prices[i] = sw.price
	}
	sort.Float64s(prices)

	var zones []models.LiquidityZone
	start := 0
	flush := func(end int) {
		if end-start >= 2 {
			zones = append(zones, models.LiquidityZone{
				Price:   features.Mean(prices[start:end]),
				Kind:    kind,
				Touches: end - start,
			})
		}
	}
	for i := 1; i < len(prices); i++ {
		if prices[i]-prices[start] > tol {
			flush(i)
			start = i
		}
	}
	flush(len(prices))
	return zones
}
