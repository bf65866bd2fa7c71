//go:build redis
// +build redis

package eventbus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rezkym/fx-exchange/pkg/domain/events"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisBus starts a Redis container and returns a bus connected to it.
func setupRedisBus(tb testing.TB) *RedisEventBus {
	tb.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7.0.5",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		tb.Fatalf("Failed to start container: %v", err)
	}
	tb.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(tb, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(tb, err)

	cfg := DefaultRedisEventBusConfig()
	cfg.Block = 200 * time.Millisecond
	bus, err := NewWithRedis("redis://"+host+":"+port.Port(), discardLogger(), cfg)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestRedisBusHandlerReceivesEvent(t *testing.T) {
	bus := setupRedisBus(t)

	received := make(chan *events.RateTickApplied, 1)
	bus.Register(events.EventTypeRateTickApplied, func(ctx context.Context, e events.Event) error {
		received <- e.(*events.RateTickApplied)
		return nil
	})

	err := bus.Emit(context.Background(), &events.RateTickApplied{Meta: events.NewMeta(), Pair: eurIdr, Value: 105})
	require.NoError(t, err)

	select {
	case got := <-received:
		require.Equal(t, eurIdr, got.Pair)
		require.Equal(t, 105.0, got.Value)
	case <-time.After(3 * time.Second):
		t.Fatal("handler did not receive event in time")
	}
}

func TestRedisBusFailedHandlerGoesToDLQ(t *testing.T) {
	bus := setupRedisBus(t)

	var calls atomic.Int64
	bus.Register(events.EventTypeRateFetchFailed, func(ctx context.Context, e events.Event) error {
		calls.Add(1)
		return context.DeadlineExceeded
	})

	require.NoError(t, bus.Emit(context.Background(), &events.RateFetchFailed{Meta: events.NewMeta(), Pair: eurIdr}))

	dlq := dlqStreamName(bus.config.Prefix, events.EventTypeRateFetchFailed)
	require.Eventually(t, func() bool {
		n, err := bus.client.XLen(context.Background(), dlq).Result()
		return err == nil && n == 1
	}, 3*time.Second, 50*time.Millisecond)
	require.Equal(t, int64(1), calls.Load())
}

func TestNewWithRedis_Errors(t *testing.T) {
	_, err := NewWithRedis("", discardLogger(), nil)
	require.Error(t, err)
	_, err = NewWithRedis("not-a-url", discardLogger(), nil)
	require.Error(t, err)
}
