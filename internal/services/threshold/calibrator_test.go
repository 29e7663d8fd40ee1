package threshold

import (
	"errors"
	"testing"

	"PlanSentry/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profiles map[string]models.AssetProfile

func (p profiles) Get(symbol string) (models.AssetProfile, bool) {
	v, ok := p[symbol]
	return v, ok
}

type fixedBias map[models.Session]float64

func (b fixedBias) Bias(_ string, s models.Session) (float64, bool) {
	v, ok := b[s]
	return v, ok
}

var testProfiles = profiles{
	"BTCUSD": {Symbol: "BTCUSD", BaseConfidence: 75, VolatilityWeight: 0.6, SessionWeight: 0.4},
	"XAUUSD": {Symbol: "XAUUSD", BaseConfidence: 70, VolatilityWeight: 0.5, SessionWeight: 0.6},
}

func TestBTCScenario(t *testing.T) {
	c := New(testProfiles, fixedBias{models.SessionAsian: 1.1})
	calc, err := c.ComputeThreshold("BTCUSD", models.SessionAsian, 1.4)
	require.NoError(t, err)

	assert.InDelta(t, 93.0, calc.VolAdjusted, 0.01)
	assert.InDelta(t, 96.8, calc.Raw, 0.5)
	assert.Equal(t, 95.0, calc.Threshold, "default ceiling clamps the raw value")
	assert.Equal(t, models.SourceCalibrated, calc.Source)

	wide := New(testProfiles, fixedBias{models.SessionAsian: 1.1}, WithBounds(50, 100))
	calc, err = wide.ComputeThreshold("BTCUSD", models.SessionAsian, 1.4)
	require.NoError(t, err)
	assert.InDelta(t, 96.8, calc.Threshold, 0.5)
}

func TestGoldScenario(t *testing.T) {
	c := New(testProfiles, fixedBias{models.SessionLondon: 0.85})
	calc, err := c.ComputeThreshold("XAUUSD", models.SessionLondon, 0.8)
	require.NoError(t, err)
	assert.InDelta(t, 63.0, calc.VolAdjusted, 0.01)
	assert.InDelta(t, 57.3, calc.Threshold, 0.5)
}

func TestThresholdBoundedAndMonotonic(t *testing.T) {
	c := New(testProfiles, fixedBias{models.SessionOverlap: 0.9})
	for _, sym := range []string{"BTCUSD", "XAUUSD"} {
		prev := -1.0
		for vr := 0.0; vr <= 5.0; vr += 0.05 {
			calc, err := c.ComputeThreshold(sym, models.SessionOverlap, vr)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, calc.Threshold, 50.0)
			assert.LessOrEqual(t, calc.Threshold, 95.0)
			assert.GreaterOrEqual(t, calc.Threshold, prev, "%s vr=%.2f", sym, vr)
			prev = calc.Threshold
		}
	}
}

func TestCalibrationUnavailable(t *testing.T) {
	c := New(testProfiles, fixedBias{})
	_, err := c.ComputeThreshold("BTCUSD", models.SessionAsian, 1)
	assert.True(t, errors.Is(err, models.ErrCalibrationUnavailable))

	_, err = New(testProfiles, fixedBias{models.SessionAsian: 1}).ComputeThreshold("EURUSD", models.SessionAsian, 1)
	assert.True(t, errors.Is(err, models.ErrCalibrationUnavailable))

	_, err = New(nil, nil).SessionDefault("EURUSD", models.SessionAsian)
	assert.True(t, errors.Is(err, models.ErrCalibrationUnavailable))
}

func TestSessionDefaultUsesBaseAndBias(t *testing.T) {
	c := New(nil, fixedBias{models.SessionLate: 1.21})
	calc, err := c.SessionDefault("EURUSD", models.SessionLate)
	require.NoError(t, err)
	assert.InDelta(t, 77.0, calc.Threshold, 1e-9) // 70 * sqrt(1.21)
	assert.Equal(t, models.SourceSessionDefault, calc.Source)
}

func TestFixedAndShift(t *testing.T) {
	f := Fixed("EURUSD", models.SessionAsian, 70)
	assert.Equal(t, 70.0, f.Threshold)
	assert.Equal(t, models.SourceFixedDefault, f.Source)

	c := New(testProfiles, fixedBias{models.SessionLondon: 0.85})
	calc, _ := c.ComputeThreshold("XAUUSD", models.SessionLondon, 0.8)
	shifted := ApplyShift(calc, 12, 5)
	assert.Equal(t, 5.0, shifted.AdvisoryShift)
	assert.InDelta(t, calc.Threshold+5, shifted.Threshold, 1e-9)

	low := ApplyShift(calc, -20, 5)
	assert.InDelta(t, calc.Threshold-5, low.Threshold, 1e-9)

	floored := ApplyShift(models.ThresholdCalculation{Threshold: 52, Floor: 50, Ceiling: 95}, -5, 5)
	assert.Equal(t, 50.0, floored.Threshold)
}
