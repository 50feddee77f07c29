package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"MacroGate/internal/domain/models"
	"MacroGate/internal/services/execution"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEmptyPathGivesDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 60*time.Second, c.Engine.Interval)
	assert.Equal(t, execution.DefaultPolicy(), c.Engine.Policy)
	assert.Equal(t, []string{"DX-Y.NYB", "DX=F"}, c.Drivers.DXY.Tickers)
	assert.Equal(t, 14.50, c.Drivers.VIX.FallbackPrice)
	assert.Len(t, c.Instruments, 2)
	assert.Equal(t, []string{"memory"}, c.Audit.Backends)
	assert.False(t, c.Kafka.Enabled())
	assert.Equal(t, models.Narrative{Pressure: models.PressureLow, Frequency: models.FrequencyNormal}, c.Engine.Narrative())

	gold, ok := c.Instrument("xauusd")
	require.True(t, ok)
	assert.Equal(t, models.KindRateLed, gold.Kind)
}

func TestLoadOverridesPolicy(t *testing.T) {
	path := writeConfig(t, `
environment: test
engine:
  interval: 30s
  stale_after_minutes: 90
  stress:
    dirty_level: 25
  penalties:
    off_hours: 20
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, c.Engine.Interval)
	assert.Equal(t, 90.0, c.Engine.StaleAfterMinutes)
	assert.Equal(t, 25.0, c.Engine.Stress.DirtyLevel)
	assert.Equal(t, execution.DefaultCautionLevel, c.Engine.Stress.CautionLevel)
	assert.Equal(t, 20, c.Engine.Penalties.OffHours)
	assert.Len(t, c.Engine.Sessions, 5)
}

func TestLoadKeepsExplicitZeros(t *testing.T) {
	path := writeConfig(t, `
engine:
  penalties:
    dxy_compression: 0
    off_hours: 0
  thin_phases: []
stream:
  min_interval: 0s
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, c.Engine.Penalties.DXYCompression)
	assert.Zero(t, c.Engine.Penalties.OffHours)
	assert.Equal(t, execution.DefaultPolicy().Penalties.StressDirty, c.Engine.Penalties.StressDirty)
	assert.Empty(t, c.Engine.ThinPhases)
	assert.Zero(t, c.Stream.MinInterval)
	assert.Len(t, c.Engine.Sessions, 5)
	assert.Len(t, c.Instruments, 2)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown environment": "environment: qa\n",
		"bad log level":       "log:\n  level: loud\n",
		"overlapping sessions": `
engine:
  sessions:
    - { name: A, start: "09:00", end: "10:00" }
    - { name: NY AM, start: "09:30", end: "11:00" }
`,
		"kafka audit without brokers": "audit:\n  backends: [memory, kafka]\n",
		"clickhouse without host":     "marketdata:\n  source: clickhouse\n",
		"instrument without kind":     "instruments:\n  - { id: GBPUSD, tickers: [\"GBPUSD=X\"] }\n",
		"duplicate instrument": `
instruments:
  - { id: EURUSD, kind: inverse_dollar, tickers: ["EURUSD=X"] }
  - { id: EURUSD, kind: inverse_dollar, tickers: ["6E=F"] }
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadSessionErrorIsConfigurationError(t *testing.T) {
	path := writeConfig(t, `
engine:
  active_phase: Tokyo
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, execution.IsConfigurationError(err))
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("MACROGATE_ENV", "staging")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")
	t.Setenv("LOG_LEVEL", "DEBUG")

	c, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "ch.internal", c.ClickHouse.Host)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
