package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "localhost:3000", cfg.Server.Addr())
	assert.Equal(t, 10*time.Second, cfg.Live.PollInterval)
	assert.Equal(t, provider.DefaultWindow, cfg.Live.Window())
	assert.Equal(t, 60*time.Second, cfg.Conversion.TTL)
	assert.Equal(t, "memory", cfg.EventBus.Driver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.EventBus.KafkaBrokers)

	reporting, err := cfg.Conversion.Reporting()
	require.NoError(t, err)
	assert.Equal(t, currency.USD, reporting)
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_ENV", "production")
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("RATES_API_URL", "https://rates.example.com/v1")
	t.Setenv("RATES_API_API_KEY", "secret-key-1234")
	t.Setenv("LIVE_POLL_INTERVAL", "2s")
	t.Setenv("CONVERSION_REPORTING_CURRENCY", "idr")
	t.Setenv("EVENT_BUS_DRIVER", "redis")
	t.Setenv("EVENT_BUS_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "https://rates.example.com/v1", cfg.RatesAPI.ApiUrl)
	assert.Equal(t, "secret-key-1234", cfg.RatesAPI.ApiKey)
	assert.Equal(t, 2*time.Second, cfg.Live.PollInterval)
	assert.Equal(t, "redis", cfg.EventBus.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.EventBus.KafkaBrokers)

	reporting, err := cfg.Conversion.Reporting()
	require.NoError(t, err)
	assert.Equal(t, currency.IDR, reporting)
}

func TestLoad_EnvFileFoundUpwards(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env.test"),
		[]byte("SERVER_PORT=4010\nCONVERSION_TTL=30s\n"), 0o600))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	chdir(t, nested)

	// godotenv does not override existing variables; make sure these are
	// unset and restored afterwards.
	t.Setenv("SERVER_PORT", "")
	t.Setenv("CONVERSION_TTL", "")
	require.NoError(t, os.Unsetenv("SERVER_PORT"))
	require.NoError(t, os.Unsetenv("CONVERSION_TTL"))

	found, err := FindEnvTest(".env.test")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".env.test"), found)

	cfg, err := Load(".env.missing", ".env.test")
	require.NoError(t, err)
	assert.Equal(t, 4010, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Conversion.TTL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown bus driver", "EVENT_BUS_DRIVER", "nats"},
		{"bad reporting currency", "CONVERSION_REPORTING_CURRENCY", "dollars"},
		{"bad window unit", "LIVE_WINDOW_UNIT", "year"},
		{"zero poll interval", "LIVE_POLL_INTERVAL", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestFindEnvTest_NotFound(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := FindEnvTest(".env.does-not-exist-anywhere")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
