//go:build !kafka
// +build !kafka

package eventbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rezkym/fx-exchange/pkg/domain/events"
	"github.com/rezkym/fx-exchange/pkg/eventbus"
)

type KafkaEventBusConfig struct {
	GroupID     string
	TopicPrefix string
}

type KafkaEventBus struct{}

func NewWithKafka(
	brokers []string,
	logger *slog.Logger,
	config *KafkaEventBusConfig,
) (*KafkaEventBus, error) {
	if len(cleanBrokers(brokers)) == 0 {
		return nil, fmt.Errorf("kafka event bus: brokers are required")
	}
	return nil, fmt.Errorf("kafka event bus: build with -tags kafka to enable")
}

func (b *KafkaEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
}

func (b *KafkaEventBus) Emit(ctx context.Context, event events.Event) error {
	return fmt.Errorf("kafka event bus: build with -tags kafka to enable")
}

func (b *KafkaEventBus) Close() error { return nil }

var _ eventbus.Bus = (*KafkaEventBus)(nil)
