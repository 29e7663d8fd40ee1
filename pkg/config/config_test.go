package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
environment: development
bar_source:
  type: http
  url: http://bars.local
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, c.Engine.CycleInterval)
	assert.Equal(t, 70.0, c.Engine.FallbackThreshold)
	assert.Equal(t, 30*time.Second, c.Refresh.ActiveInterval)
	assert.Equal(t, 300*time.Second, c.Refresh.IdleInterval)
	assert.Equal(t, 180*time.Second, c.Refresh.StaleAfter)
	assert.Equal(t, 3, c.Refresh.Retries)
	assert.Equal(t, 500, c.Cache.BarCapacity)
	assert.Equal(t, 30, c.Cache.MinWindow)
	assert.Equal(t, 50.0, c.Threshold.Floor)
	assert.Equal(t, 95.0, c.Threshold.Ceiling)
	assert.Equal(t, time.Hour, c.Persistence.MaxAge)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)

	sd, sh, ed, eh := c.WeekendWindow()
	assert.Equal(t, time.Friday, sd)
	assert.Equal(t, 21, sh)
	assert.Equal(t, time.Sunday, ed)
	assert.Equal(t, 21, eh)
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimalYAML + `
engine:
  cycle_interval: 10s
threshold:
  floor: 40
  ceiling: 99
`))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, c.Engine.CycleInterval)
	assert.Equal(t, 40.0, c.Threshold.Floor)
	assert.Equal(t, 99.0, c.Threshold.Ceiling)
}

func TestValidateRejectsInvertedBounds(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + `
threshold:
  floor: 90
  ceiling: 60
`))
	require.Error(t, err)
}

func TestValidateRequiresSourceURL(t *testing.T) {
	_, err := Parse([]byte("environment: development\n"))
	require.Error(t, err)
}

func TestValidateKafkaBrokers(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + `
kafka:
  enabled: true
`))
	require.Error(t, err)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	t.Setenv("SYMBOLS", "BTCUSD,XAUUSD")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSD", "XAUUSD"}, c.Refresh.Symbols)
	assert.Equal(t, "debug", c.Log.Level)
}
