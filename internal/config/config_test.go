package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRosterYAML = `
stations:
  - id: "@2554"
    name: "Anand Vihar, Delhi"
    zone: "roadside"
    latitude: 28.6468
    longitude: 77.3152
  - id: "@2556"
    name: "R.K. Puram, Delhi"
    zone: "residential"
    latitude: 28.5632
    longitude: 77.1869
`

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// clearEnv unsets every variable Load reads so ambient shell state
// cannot leak into assertions. t.Setenv restores values on cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT",
		"POLL_INTERVAL", "KAFKA_BROKERS", "KAFKA_SINK_TOPIC",
		"WAQI_TOKEN", "WAQI_TIMEOUT",
		"OPENWEATHERMAP_KEY", "OPENWEATHERMAP_ENABLED", "OPENWEATHERMAP_TIMEOUT",
		"LIMITS_PATH", "ZONES_PATH", "STATIONS_PATH", "LEDGER_PATH",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATIONS_PATH", writeRoster(t, testRosterYAML))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "compliance-events", cfg.KafkaSinkTopic)
	assert.Equal(t, "config/naaqs.yaml", cfg.LimitsPath)
	assert.False(t, cfg.WeatherEnabled)
	assert.Empty(t, cfg.LedgerPath)
	require.Len(t, cfg.Stations, 2)
	assert.Equal(t, "@2554", cfg.Stations[0].ID)
	assert.Equal(t, "roadside", cfg.Stations[0].Zone)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATIONS_PATH", writeRoster(t, testRosterYAML))
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("POLL_INTERVAL", "90s")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9092")
	t.Setenv("OPENWEATHERMAP_KEY", "owm-test-key")
	t.Setenv("LEDGER_PATH", "/var/lib/greenpulse/ledger.jsonl")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 90*time.Second, cfg.PollInterval)
	assert.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.WeatherEnabled)
	assert.Equal(t, "/var/lib/greenpulse/ledger.jsonl", cfg.LedgerPath)
}

func TestLoad_WeatherFlag(t *testing.T) {
	t.Run("key present but explicitly disabled", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STATIONS_PATH", writeRoster(t, testRosterYAML))
		t.Setenv("OPENWEATHERMAP_KEY", "owm-test-key")
		t.Setenv("OPENWEATHERMAP_ENABLED", "false")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.WeatherEnabled)
	})

	t.Run("enabled without a key is an error", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STATIONS_PATH", writeRoster(t, testRosterYAML))
		t.Setenv("OPENWEATHERMAP_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OPENWEATHERMAP_KEY")
	})
}

func TestLoad_Validation(t *testing.T) {
	t.Run("poll interval below 1s", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STATIONS_PATH", writeRoster(t, testRosterYAML))
		t.Setenv("POLL_INTERVAL", "500ms")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "POLL_INTERVAL")
	})

	t.Run("unparseable duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SHUTDOWN_TIMEOUT", "soon")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
	})

	t.Run("missing roster file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STATIONS_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "station roster")
	})
}

func TestLoadStations(t *testing.T) {
	t.Run("empty roster rejected", func(t *testing.T) {
		_, err := LoadStations(writeRoster(t, "stations: []\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "roster is empty")
	})

	t.Run("station without id rejected", func(t *testing.T) {
		_, err := LoadStations(writeRoster(t, "stations:\n  - name: \"No ID\"\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no id")
	})

	t.Run("repository roster parses", func(t *testing.T) {
		stations, err := LoadStations(filepath.Join("..", "..", "config", "stations.yaml"))
		require.NoError(t, err)
		assert.NotEmpty(t, stations)
	})
}
