package initializer

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/rezkym/fx-exchange/pkg/config"
)

// levelStyle renders a level badge in a fixed colour.
func levelStyle(badge, color string) lipgloss.Style {
	return lipgloss.NewStyle().
		SetString(badge).
		Bold(true).
		Padding(0, 1).
		Foreground(lipgloss.AdaptiveColor{Light: color, Dark: color})
}

// setupLogger builds the process logger on a charmbracelet handler and
// installs it as the slog default.
func setupLogger(cfg config.Log, w io.Writer) *slog.Logger {
	styles := log.DefaultStyles()
	styles.Levels[log.ErrorLevel] = levelStyle("ERR", "#FF6B6B")
	styles.Levels[log.WarnLevel] = levelStyle("WRN", "#EE6FF8")
	styles.Levels[log.InfoLevel] = levelStyle("INF", "#04B575")
	styles.Levels[log.DebugLevel] = levelStyle("DBG", "#7E57C2")

	keyColor := lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}
	for _, key := range []string{"error", "pair", "component", "type"} {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(keyColor)
		styles.Values[key] = lipgloss.NewStyle().Bold(true)
	}
	styles.Values["error"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"})

	formatter := log.TextFormatter
	if cfg.Format == "json" {
		formatter = log.JSONFormatter
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.Level < 0,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	handler.SetStyles(styles)

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
