// Command bus_smoketest emits one event of every type through a broker-backed
// event bus and waits until each comes back through its consumer, to verify
// a local Redis or Kafka setup.
//
// Usage: FX_SMOKE_BUS=redis FX_SMOKE_REDIS_URL=redis://localhost:6379/0 go run ./scripts/bus_smoketest
//
//	FX_SMOKE_BUS=kafka FX_SMOKE_BROKERS=localhost:9092 go run -tags kafka ./scripts/bus_smoketest
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	infra_eventbus "github.com/rezkym/fx-exchange/infra/eventbus"
	"github.com/rezkym/fx-exchange/pkg/config"
	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/domain/events"
	"github.com/rezkym/fx-exchange/pkg/eventbus"
)

type bus interface {
	eventbus.Bus
	io.Closer
}

func samples() []events.Event {
	pair := currency.Pair{Source: currency.EUR, Target: currency.IDR}
	return []events.Event{
		&events.RateTickApplied{Meta: events.NewMeta(), Pair: pair, Time: time.Now(), Value: 17250.5},
		&events.RateFetchFailed{Meta: events.NewMeta(), Pair: pair, Error: "smoke"},
		&events.RateHistoryFailed{Meta: events.NewMeta(), Pair: pair, Error: "smoke"},
		&events.RateHistoryUnordered{Meta: events.NewMeta(), Pair: pair, Detail: "smoke"},
		&events.ConversionRefreshed{Meta: events.NewMeta(), Reporting: currency.USD, Currencies: 2},
		&events.ConversionFallbackApplied{Meta: events.NewMeta(), Currency: currency.EUR, Reporting: currency.USD, Error: "smoke"},
	}
}

func connect(logger *slog.Logger) (bus, error) {
	switch driver := config.ToolEnv("SMOKE_BUS", "redis"); driver {
	case "redis":
		return infra_eventbus.NewWithRedis(config.ToolEnv("SMOKE_REDIS_URL", "redis://localhost:6379/0"), logger,
			&infra_eventbus.RedisEventBusConfig{Prefix: "fx:smoke", Group: "fx-smoke"})
	case "kafka":
		return infra_eventbus.NewWithKafka(config.ToolList("SMOKE_BROKERS", "localhost:9092"), logger,
			&infra_eventbus.KafkaEventBusConfig{GroupID: "fx-smoke", TopicPrefix: "fx.smoke"})
	default:
		return nil, fmt.Errorf("unsupported %sSMOKE_BUS %q", config.ToolEnvPrefix, driver)
	}
}

// RunSmokeTest round-trips every event type through the bus.
func RunSmokeTest() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	b, err := connect(logger)
	if err != nil {
		logger.Error("connect failed", "error", err)
		return err
	}
	defer func() { _ = b.Close() }()

	sent := samples()
	var wg sync.WaitGroup
	wg.Add(len(sent))
	for _, e := range sent {
		var once sync.Once
		b.Register(e.Type(), func(_ context.Context, got events.Event) error {
			logger.Info("consumed", "type", string(got.Type()))
			once.Do(wg.Done)
			return nil
		})
	}

	timeout, err := config.ToolDuration("SMOKE_TIMEOUT", 30*time.Second)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, e := range sent {
		if err := b.Emit(ctx, e); err != nil {
			logger.Error("emit failed", "type", string(e.Type()), "error", err)
			return err
		}
		logger.Info("produced", "type", string(e.Type()))
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
		logger.Info("event bus smoke test passed")
		return nil
	case <-ctx.Done():
		logger.Error("timed out waiting for events")
		return ctx.Err()
	}
}

// main runs the smoke test and exits non-zero on failure.
func main() {
	if err := RunSmokeTest(); err != nil {
		os.Exit(1)
	}
}
