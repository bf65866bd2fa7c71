package initializer

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	infra_eventbus "github.com/rezkym/fx-exchange/infra/eventbus"
	"github.com/rezkym/fx-exchange/infra/provider/ratesapi"
	"github.com/rezkym/fx-exchange/pkg/app"
	"github.com/rezkym/fx-exchange/pkg/config"
	"github.com/rezkym/fx-exchange/pkg/eventbus"
)

// InitializeDependencies initializes all the application dependencies
func InitializeDependencies(cfg *config.App) (
	deps *app.Deps,
	err error,
) {
	deps = &app.Deps{}
	logger := setupLogger(cfg.Log, os.Stdout)
	deps.Logger = logger

	client := ratesapi.New(cfg.RatesAPI, logger)
	deps.RateAPI = client
	deps.Accounts = client

	deps.EventBus, err = initEventBus(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}
	return
}

// initEventBus picks the bus named by cfg.EventBus.Driver. A configured but
// unreachable broker degrades to the in-process async bus; a missing
// address is a configuration error.
func initEventBus(cfg *config.App, logger *slog.Logger) (eventbus.Bus, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.EventBus.Driver))
	switch driver {
	case "", "memory":
		logger.Info("Using in-memory async event bus")
		return infra_eventbus.NewWithMemoryAsync(logger), nil

	case "redis":
		if strings.TrimSpace(cfg.EventBus.RedisURL) == "" {
			return nil, fmt.Errorf("event bus driver redis requires EVENT_BUS_REDIS_URL")
		}
		bus, err := infra_eventbus.NewWithRedis(cfg.EventBus.RedisURL, logger, &infra_eventbus.RedisEventBusConfig{
			Prefix: cfg.EventBus.Stream,
			Group:  cfg.EventBus.Group,
		})
		if err != nil {
			logger.Warn("Redis event bus unavailable, falling back to in-memory async", "error", err)
			return infra_eventbus.NewWithMemoryAsync(logger), nil
		}
		return bus, nil

	case "kafka":
		if len(cfg.EventBus.KafkaBrokers) == 0 || strings.TrimSpace(strings.Join(cfg.EventBus.KafkaBrokers, "")) == "" {
			return nil, fmt.Errorf("event bus driver kafka requires EVENT_BUS_KAFKA_BROKERS")
		}
		bus, err := infra_eventbus.NewWithKafka(cfg.EventBus.KafkaBrokers, logger, &infra_eventbus.KafkaEventBusConfig{
			GroupID:     cfg.EventBus.Group,
			TopicPrefix: cfg.EventBus.Stream,
		})
		if err != nil {
			logger.Warn("Kafka event bus unavailable, falling back to in-memory async", "error", err)
			return infra_eventbus.NewWithMemoryAsync(logger), nil
		}
		return bus, nil

	default:
		return nil, fmt.Errorf("unsupported event bus driver %q", cfg.EventBus.Driver)
	}
}
