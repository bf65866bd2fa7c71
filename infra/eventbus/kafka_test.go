//go:build kafka
// +build kafka

package eventbus

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rezkym/fx-exchange/pkg/domain/events"
	"github.com/stretchr/testify/require"
	testcontainerskafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func dockerIsReachable() bool {
	conn, err := net.DialTimeout("unix", "/var/run/docker.sock", time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// setupKafkaBus starts a Kafka container and returns a bus connected to it.
func setupKafkaBus(tb testing.TB) *KafkaEventBus {
	tb.Helper()
	if !dockerIsReachable() {
		tb.Skip("docker is not reachable")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	container, err := testcontainerskafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	if err != nil {
		tb.Fatalf("failed to start kafka container: %v", err)
	}
	tb.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(tb, err)

	bus, err := NewWithKafka(brokers, discardLogger(), nil)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestKafkaBusHandlerReceivesEvent(t *testing.T) {
	bus := setupKafkaBus(t)

	received := make(chan *events.RateTickApplied, 1)
	bus.Register(events.EventTypeRateTickApplied, func(ctx context.Context, e events.Event) error {
		received <- e.(*events.RateTickApplied)
		return nil
	})

	// The reader starts at the last offset; give the group time to join.
	time.Sleep(3 * time.Second)
	require.NoError(t, bus.Emit(context.Background(), &events.RateTickApplied{Meta: events.NewMeta(), Pair: eurIdr, Value: 1.5}))

	select {
	case got := <-received:
		require.Equal(t, 1.5, got.Value)
	case <-time.After(30 * time.Second):
		t.Fatal("handler did not receive event in time")
	}
}

func TestNewWithKafka_RequiresBrokers(t *testing.T) {
	_, err := NewWithKafka(nil, discardLogger(), nil)
	require.Error(t, err)
}
