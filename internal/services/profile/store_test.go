package profile

import (
	"os"
	"path/filepath"
	"testing"

	"PlanSentry/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `
profiles:
  - symbol: BTCUSD
    asset_class: crypto
    base_confidence: 75
    volatility_weight: 0.6
    session_weight: 0.4
    vwap_sigma: 2.5
    preferred_strategy: breakout
    always_open: true
  - symbol: XAUUSD
    asset_class: metal
    base_confidence: 70
    volatility_weight: 0.5
    session_weight: 0.6
    applicable_sessions: [london, overlap, new_york]
    event_sensitive: true
session_bias:
  XAUUSD:
    london: 0.85
    asian: 1.15
`

func writeDoc(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAndLookup(t *testing.T) {
	s, err := Load(writeDoc(t, doc))
	require.NoError(t, err)

	btc, ok := s.Get("btcusd")
	require.True(t, ok)
	assert.Equal(t, 75.0, btc.BaseConfidence)
	assert.True(t, btc.AlwaysOpen)
	assert.Equal(t, models.StrategyBreakout, btc.PreferredStrategy)

	gold, ok := s.Get("XAUUSDc")
	require.True(t, ok, "broker suffix should resolve to the base profile")
	assert.Equal(t, 2.0, gold.VWAPSigma, "vwap sigma defaults to 2")
	assert.True(t, gold.AppliesTo(models.SessionLondon))
	assert.False(t, gold.AppliesTo(models.SessionAsian))

	b, ok := s.Bias("XAUUSD", models.SessionLondon)
	require.True(t, ok)
	assert.Equal(t, 0.85, b)
	_, ok = s.Bias("BTCUSD", models.SessionLondon)
	assert.False(t, ok)

	assert.Equal(t, []string{"BTCUSD", "XAUUSD"}, s.Symbols())
}

func TestLoadRejectsInvalidProfiles(t *testing.T) {
	cases := map[string]string{
		"negative weight": "profiles:\n  - {symbol: X, base_confidence: 70, volatility_weight: -1}\n",
		"zero base":       "profiles:\n  - {symbol: X, base_confidence: 0}\n",
		"bad session":     "profiles:\n  - {symbol: X, base_confidence: 70, applicable_sessions: [tokyo]}\n",
		"duplicate":       "profiles:\n  - {symbol: X, base_confidence: 70}\n  - {symbol: x, base_confidence: 60}\n",
		"bad bias":        "session_bias:\n  X: {midnight: 1.0}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeDoc(t, body))
			assert.Error(t, err)
		})
	}
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	path := writeDoc(t, doc)
	s, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("profiles: [{symbol: BTCUSD, base_confidence: -5}]"), 0o644))
	assert.Error(t, s.Reload())

	btc, ok := s.Get("BTCUSD")
	require.True(t, ok)
	assert.Equal(t, 75.0, btc.BaseConfidence)
}
