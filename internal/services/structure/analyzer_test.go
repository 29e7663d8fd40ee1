package structure

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PlanSentry/internal/domain/models"
	"PlanSentry/internal/services/features"
)

var t0 = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

// flatBars builds bars whose open equals the close and whose wicks are 0.2.
func flatBars(closes ...float64) []models.Bar {
	out := make([]models.Bar, len(closes))
	for i, c := range closes {
		out[i] = models.Bar{
			Symbol:    "TEST",
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c + 0.2,
			Low:       c - 0.2,
			Close:     c,
			Volume:    100,
		}
	}
	return out
}

func waveBars(n int, seed int64) []models.Bar {
	rng := rand.New(rand.NewSource(seed))
	out := make([]models.Bar, n)
	prev := 100.0
	for i := 0; i < n; i++ {
		c := 100 + 5*math.Sin(float64(i)/6) + 0.05*float64(i) + rng.Float64() - 0.5
		hi := math.Max(prev, c) + rng.Float64()*0.5
		lo := math.Min(prev, c) - rng.Float64()*0.5
		out[i] = models.Bar{
			Symbol:    "WAVE",
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Open:      prev,
			High:      hi,
			Low:       lo,
			Close:     c,
			Volume:    50 + rng.Float64()*100,
		}
		prev = c
	}
	return out
}

func breaksOf(a *Analyzer, bars []models.Bar) models.BreakState {
	highs, lows := findSwings(bars, a.params.SwingStrength)
	return a.detectBreaks(bars, highs, lows, features.ATR(bars, a.params.ATRPeriod))
}

func TestDetectBreaks_SingleBarSpikeIsRejected(t *testing.T) {
	bars := flatBars(10, 11, 12, 11, 10, 9, 9.5, 10, 11, 12.5, 11.5, 11, 10.5, 10)

	st := breaksOf(New(), bars)
	assert.False(t, st.BOS.Detected)
	assert.False(t, st.BOS.Confirmed)
	assert.False(t, st.CHOCH.Confirmed)
	assert.Equal(t, 1, st.RejectedBreaks)

	p := DefaultParams()
	p.ConfirmBars = 1
	single := breaksOf(New(WithParams(p)), bars)
	assert.True(t, single.BOS.Confirmed, "one-bar confirmation accepts the spike")
}

func TestDetectBreaks_TwoBarsAreNotEnough(t *testing.T) {
	bars := flatBars(10, 11, 12, 11, 10, 9, 9.5, 10, 11, 12.5, 12.6, 12.0, 11.5, 11)

	st := breaksOf(New(), bars)
	assert.False(t, st.BOS.Confirmed)
	assert.False(t, st.CHOCH.Confirmed)
	assert.Equal(t, 1, st.RejectedBreaks)
}

func TestDetectBreaks_ThreeClosesConfirm(t *testing.T) {
	bars := flatBars(10, 11, 12, 11, 10, 9, 9.5, 10, 11, 12.5, 12.6, 12.8, 13, 13.2)

	st := breaksOf(New(), bars)
	require.True(t, st.BOS.Confirmed)
	assert.Equal(t, models.DirectionBullish, st.BOS.Direction)
	assert.InDelta(t, 12.2, st.BOS.Level, 1e-9)
	assert.Equal(t, 9, st.BOS.BarIndex)
	assert.Equal(t, 3, st.BOS.ConfirmBars)
	assert.GreaterOrEqual(t, st.BOS.Confidence, 50.0)
	assert.False(t, st.CHOCH.Detected)
	assert.False(t, st.Combined)
}

func TestDetectBreaks_ReversalThenContinuation(t *testing.T) {
	bars := flatBars(
		12, 11, 10, 11, 12, 11, 10, 9.5, 9.2, 9.0,
		8.5, 8.0, 8.5, 9.0, 9.5, 9.0, 8.5, 8.8, 9.8, 10.0,
		10.3, 10.8, 10.4, 10.0, 10.2, 10.9, 11.2, 11.4, 11.6,
	)

	st := breaksOf(New(), bars)
	require.True(t, st.CHOCH.Confirmed)
	assert.Equal(t, models.DirectionBullish, st.CHOCH.Direction)
	assert.InDelta(t, 9.7, st.CHOCH.Level, 1e-9)
	assert.Equal(t, 18, st.CHOCH.BarIndex)

	require.True(t, st.BOS.Confirmed)
	assert.Equal(t, models.DirectionBullish, st.BOS.Direction)
	assert.Equal(t, 26, st.BOS.BarIndex)
	assert.True(t, st.Combined)
	assert.Zero(t, st.RejectedBreaks)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	_, err := New().Analyze(Input{Symbol: "WAVE", Bars: waveBars(29, 1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}

func TestAnalyze_RejectsUnorderedBars(t *testing.T) {
	bars := waveBars(40, 1)
	bars[10], bars[11] = bars[11], bars[10]
	_, err := New().Analyze(Input{Symbol: "WAVE", Bars: bars})
	assert.Error(t, err)
}

func TestAnalyze_SnapshotInvariants(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		bars := waveBars(200, seed)
		last := bars[len(bars)-1].Timestamp
		a := New(WithClock(func() time.Time { return last.Add(30 * time.Second) }))

		snap, err := a.Analyze(Input{Symbol: "WAVE", Bars: bars, VWAPSigma: 2})
		require.NoError(t, err)

		c := snap.Confluence
		assert.GreaterOrEqual(t, c.Total, 0.0)
		assert.LessOrEqual(t, c.Total, 100.0)
		assert.InDelta(t, c.Trend+c.Momentum+c.Structure+c.Volatility+c.Liquidity, c.Total, 0.05)
		assert.LessOrEqual(t, c.Trend, models.WeightTrend)
		assert.LessOrEqual(t, c.Liquidity, models.WeightLiquidity)
		assert.Equal(t, Grade(c.Total), c.Grade)

		for _, sig := range []models.BreakSignal{snap.Breaks.CHOCH, snap.Breaks.BOS} {
			if sig.Confirmed {
				assert.GreaterOrEqual(t, sig.ConfirmBars, 3)
			}
		}
		assert.Len(t, snap.Trend.Windows, 3)
		assert.Equal(t, 200, snap.Bars)
		assert.Equal(t, last, snap.AsOf)
		assert.Equal(t, 30*time.Second, snap.Age)
		assert.False(t, snap.Stale)
		assert.LessOrEqual(t, snap.VWAP.Lower, snap.VWAP.VWAP)
		assert.GreaterOrEqual(t, snap.VWAP.Upper, snap.VWAP.VWAP)
	}
}

func TestAnalyze_StaleFlag(t *testing.T) {
	bars := waveBars(60, 7)
	last := bars[len(bars)-1].Timestamp
	a := New(
		WithClock(func() time.Time { return last.Add(10 * time.Minute) }),
		WithStaleAfter(3*time.Minute),
	)
	snap, err := a.Analyze(Input{Symbol: "WAVE", Bars: bars})
	require.NoError(t, err)
	assert.True(t, snap.Stale)
	assert.Equal(t, 10*time.Minute, snap.Age)
}

func rangeBars(n int, width float64) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		out[i] = models.Bar{
			Symbol:    "VOL",
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Open:      100,
			High:      100 + width/2,
			Low:       100 - width/2,
			Close:     100,
			Volume:    10,
		}
	}
	return out
}

func TestVolatility_Regimes(t *testing.T) {
	a := New()

	expanding := append(rangeBars(60, 1), rangeBars(5, 3)...)
	st := a.volatility(expanding, features.ATR(expanding, 14))
	assert.Equal(t, models.VolatilityExpanding, st.Regime)
	assert.Greater(t, st.ChangePct, 20.0)
	assert.InDelta(t, 3.0, st.RangeRatio, 1e-9)

	contracting := append(rangeBars(60, 1), rangeBars(10, 0.2)...)
	st = a.volatility(contracting, features.ATR(contracting, 14))
	assert.Equal(t, models.VolatilityContracting, st.Regime)
	assert.Greater(t, st.CompressionBars, 0)
	assert.Less(t, st.ChangePct, -20.0)

	stable := rangeBars(60, 1)
	st = a.volatility(stable, features.ATR(stable, 14))
	assert.Equal(t, models.VolatilityStable, st.Regime)
	assert.Zero(t, st.CompressionBars)
}

func TestWicks(t *testing.T) {
	bars := []models.Bar{
		{Symbol: "W", Timestamp: t0, Open: 100, Close: 100.1, High: 100.2, Low: 98},
		{Symbol: "W", Timestamp: t0.Add(time.Minute), Open: 100.1, Close: 100, High: 102, Low: 99.9},
		{Symbol: "W", Timestamp: t0.Add(2 * time.Minute), Open: 100, Close: 101, High: 101.1, Low: 99.9},
	}
	got := New().wicks(bars)
	require.Len(t, got, 2)
	assert.Equal(t, models.DirectionBullish, got[0].Direction)
	assert.Equal(t, 98.0, got[0].Price)
	assert.Equal(t, models.DirectionBearish, got[1].Direction)
	assert.Equal(t, 102.0, got[1].Price)
}

func TestOrderBlocks(t *testing.T) {
	bars := rangeBars(30, 1)
	impulse := models.Bar{
		Symbol:    "VOL",
		Timestamp: t0.Add(30 * time.Minute),
		Open:      100,
		High:      102.6,
		Low:       99.9,
		Close:     102.5,
	}
	bars = append(bars, impulse)
	got := New().orderBlocks(bars, features.ATR(bars, 14))
	require.Len(t, got, 1)
	assert.Equal(t, models.DirectionBullish, got[0].Direction)
	assert.Equal(t, 27, got[0].StartIndex)
	assert.Equal(t, 29, got[0].EndIndex)
	assert.Equal(t, 100.5, got[0].High)
	assert.Equal(t, 99.5, got[0].Low)
}

func TestClusterSwings(t *testing.T) {
	s := []swing{{index: 3, price: 10}, {index: 9, price: 12}, {index: 15, price: 10.05}}
	zones := clusterSwings(s, 0.1, models.ZoneEqualHighs)
	require.Len(t, zones, 1)
	assert.InDelta(t, 10.025, zones[0].Price, 1e-9)
	assert.Equal(t, 2, zones[0].Touches)
	assert.Equal(t, models.ZoneEqualHighs, zones[0].Kind)
}

func TestClassifyStructure(t *testing.T) {
	up := classifyStructure(
		[]swing{{2, 10}, {8, 11}, {14, 12}},
		[]swing{{5, 9}, {11, 10}},
		0.1,
	)
	assert.Equal(t, models.StructureHigherHigh, up.Kind)
	assert.Equal(t, 3, up.RunLength)
	assert.Equal(t, 75.0, up.Strength)

	down := classifyStructure(
		[]swing{{2, 12}, {8, 11}},
		[]swing{{5, 10}, {11, 9}, {17, 8}},
		0.1,
	)
	assert.Equal(t, models.StructureLowerLow, down.Kind)

	flat := classifyStructure(
		[]swing{{2, 12}, {8, 12.05}},
		[]swing{{5, 10}, {11, 9}},
		0.1,
	)
	assert.Equal(t, models.StructureEqual, flat.Kind)

	none := classifyStructure(nil, nil, 0.1)
	assert.Equal(t, models.StructureChoppy, none.Kind)
}

func TestGradeAndAction(t *testing.T) {
	tests := []struct {
		total  float64
		dir    models.Direction
		grade  string
		action models.Action
	}{
		{90, models.DirectionBullish, "A", models.ActionBuyConfirmed},
		{72, models.DirectionBearish, "B", models.ActionSellConfirmed},
		{75, models.DirectionNone, "B", models.ActionWait},
		{60, models.DirectionBullish, "C", models.ActionWait},
		{45, models.DirectionBullish, "D", models.ActionAvoid},
		{10, models.DirectionBearish, "F", models.ActionAvoid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.grade, Grade(tt.total))
		assert.Equal(t, tt.action, RecommendAction(tt.total, tt.dir))
	}
}
