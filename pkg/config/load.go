package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads the first env file found among envFilePath (searched upwards
// from the working directory), falling back to ./.env, then processes the
// environment into an App.
func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()
	logger.Info("Loading environment variables")

	if len(envFilePath) == 0 {
		logger.Debug("No environment file specified, trying default .env")
		if err := godotenv.Load(); err != nil {
			logger.Warn("No .env file found in current directory")
		}
		return loadFromEnv()
	}

	for _, path := range envFilePath {
		foundPath, err := FindEnvTest(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path, "error", err)
			continue
		}

		logger.Info("Loading environment from file", "path", foundPath)
		if err := godotenv.Load(foundPath); err != nil {
			logger.Error("Failed to load environment file", "path", foundPath, "error", err)
			continue
		}
		return loadFromEnv()
	}

	logger.Info("No valid environment files found, using default .env")
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found in current directory")
	}
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	slog.Default().Info("App config loaded",
		"env", cfg.Env,
		"server", cfg.Server.Addr(),
		"rates_api_url", cfg.RatesAPI.ApiUrl,
		"rates_api_key", maskValue(cfg.RatesAPI.ApiKey),
		"poll_interval", cfg.Live.PollInterval,
		"history_interval", cfg.Live.HistoryInterval,
		"reporting_currency", cfg.Conversion.ReportingCurrency,
		"conversion_ttl", cfg.Conversion.TTL,
		"event_bus", cfg.EventBus.Driver,
		"event_bus_redis", maskValue(cfg.EventBus.RedisURL),
	)
	return &cfg, nil
}

// Validate checks field constraints and the values that need parsing.
func Validate(cfg *App) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := cfg.Conversion.Reporting(); err != nil {
		return fmt.Errorf("%w: reporting currency: %w", ErrInvalidConfig, err)
	}
	if err := validator.New().Struct(cfg.Live.Window()); err != nil {
		return fmt.Errorf("%w: live window: %w", ErrInvalidConfig, err)
	}
	return nil
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
