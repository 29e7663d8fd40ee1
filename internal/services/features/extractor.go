package features

import (
	"math"
	"sort"
	"time"

	"github.com/markcheno/go-talib"

	"PlanSentry/internal/domain/models"
)

// Series holds the column views of a bar window.
type Series struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Columns splits bars into parallel slices.
func Columns(bars []models.Bar) Series {
	s := Series{
		Open:   make([]float64, len(bars)),
		High:   make([]float64, len(bars)),
		Low:    make([]float64, len(bars)),
		Close:  make([]float64, len(bars)),
		Volume: make([]float64, len(bars)),
	}
	for i, b := range bars {
		s.Open[i] = b.Open
		s.High[i] = b.High
		s.Low[i] = b.Low
		s.Close[i] = b.Close
		s.Volume[i] = b.Volume
	}
	return s
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(bars)-1, or nil if insufficient data.
func ComputeLogReturns(bars []models.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		cur := bars[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// Ranges returns high-low per bar.
func Ranges(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Range()
	}
	return out
}

// Median returns the median of values without modifying them.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// RangeRatio is the mean range of the last recent bars over the median range
// of the whole window. It returns 1 when the median is zero.
func RangeRatio(bars []models.Bar, recent int) float64 {
	if len(bars) == 0 {
		return 1
	}
	ranges := Ranges(bars)
	med := Median(ranges)
	if med <= 0 {
		return 1
	}
	if recent <= 0 || recent > len(ranges) {
		recent = len(ranges)
	}
	return Mean(ranges[len(ranges)-recent:]) / med
}

// ATR returns the Wilder ATR series. Entries before period are zero; when the
// window is too short for period, the series of plain ranges is returned.
func ATR(bars []models.Bar, period int) []float64 {
	if period <= 0 || len(bars) <= period {
		return Ranges(bars)
	}
	s := Columns(bars)
	return talib.Atr(s.High, s.Low, s.Close, period)
}

// RSI returns the RSI series, or nil when there are not enough closes.
func RSI(closes []float64, period int) []float64 {
	if period <= 1 || len(closes) <= period {
		return nil
	}
	return talib.Rsi(closes, period)
}

// EMA returns the exponential moving average series, or nil when there are
// not enough values.
func EMA(values []float64, period int) []float64 {
	if period <= 1 || len(values) < period {
		return nil
	}
	return talib.Ema(values, period)
}

// VWAPBand computes the volume-weighted average of typical price and a band of
// sigma standard deviations around it. Zero total volume falls back to equal
// weights.
func VWAPBand(bars []models.Bar, sigma float64) (vwap, upper, lower float64) {
	if len(bars) == 0 {
		return 0, 0, 0
	}
	totalVol := 0.0
	for _, b := range bars {
		totalVol += b.Volume
	}
	weight := func(b models.Bar) float64 {
		if totalVol <= 0 {
			return 1
		}
		return b.Volume
	}
	sumW, sumPV := 0.0, 0.0
	for _, b := range bars {
		w := weight(b)
		sumW += w
		sumPV += w * typical(b)
	}
	vwap = sumPV / sumW
	variance := 0.0
	for _, b := range bars {
		d := typical(b) - vwap
		variance += weight(b) * d * d
	}
	sd := math.Sqrt(variance / sumW)
	return vwap, vwap + sigma*sd, vwap - sigma*sd
}

func typical(b models.Bar) float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Aggregate merges consecutive groups of factor bars into one higher-window
// bar. Grouping is anchored at the end of the window so the latest bar always
// closes a group; a partial leading group is dropped.
func Aggregate(bars []models.Bar, factor int) []models.Bar {
	if factor <= 1 {
		return append([]models.Bar(nil), bars...)
	}
	groups := len(bars) / factor
	if groups == 0 {
		return nil
	}
	start := len(bars) - groups*factor
	out := make([]models.Bar, 0, groups)
	for g := 0; g < groups; g++ {
		chunk := bars[start+g*factor : start+(g+1)*factor]
		agg := models.Bar{
			Symbol:    chunk[0].Symbol,
			Timestamp: chunk[0].Timestamp,
			Open:      chunk[0].Open,
			High:      chunk[0].High,
			Low:       chunk[0].Low,
			Close:     chunk[len(chunk)-1].Close,
		}
		for _, b := range chunk {
			agg.High = math.Max(agg.High, b.High)
			agg.Low = math.Min(agg.Low, b.Low)
			agg.Volume += b.Volume
		}
		out = append(out, agg)
	}
	return out
}

// RelativeVolume is the last bar's volume over the window mean. It returns 1
// when the window carries no volume.
func RelativeVolume(bars []models.Bar) float64 {
	if len(bars) == 0 {
		return 1
	}
	vols := Columns(bars).Volume
	mean := Mean(vols)
	if mean <= 0 {
		return 1
	}
	return vols[len(vols)-1] / mean
}

// AlignTo truncates t to the bar boundary of interval.
func AlignTo(t time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return t
	}
	return t.Truncate(interval)
}
