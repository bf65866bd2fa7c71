package initializer

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/rezkym/fx-exchange/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestSetupLogger_JSONFormat(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := setupLogger(config.Log{Format: "json", Prefix: "[fx]"}, &buf)
	logger.Info("Watching pair", "pair", "EUR/IDR")

	out := buf.String()
	assert.Contains(t, out, `"msg":"Watching pair"`)
	assert.Contains(t, out, `"pair":"EUR/IDR"`)
	assert.Same(t, logger, slog.Default())
}

func TestSetupLogger_LevelFiltersDebug(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := setupLogger(config.Log{Level: int(slog.LevelInfo), Format: "text"}, &buf)
	logger.Debug("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
