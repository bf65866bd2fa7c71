package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rezkym/fx-exchange/pkg/domain/events"
	"github.com/rezkym/fx-exchange/pkg/eventbus"
)

// RedisEventBusConfig tunes the Redis Streams bus.
type RedisEventBusConfig struct {
	// Prefix of every stream name, e.g. "fx:events".
	Prefix string
	// Group is the consumer group shared by every dashboard instance.
	Group string
	// Block is how long one XREADGROUP waits for new entries.
	Block time.Duration
	// MaxLen caps each stream (approximate trimming).
	MaxLen int64
}

// DefaultRedisEventBusConfig returns the defaults used when nil is passed.
func DefaultRedisEventBusConfig() *RedisEventBusConfig {
	return &RedisEventBusConfig{
		Prefix: "fx:events",
		Group:  "fx-dashboard",
		Block:  5 * time.Second,
		MaxLen: 10_000,
	}
}

// RedisEventBus publishes events to one Redis stream per event type and
// consumes them through a consumer group.
type RedisEventBus struct {
	client *redis.Client
	config *RedisEventBusConfig
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	handlers  map[events.EventType][]eventbus.HandlerFunc
	consumers map[events.EventType]struct{}
}

// NewWithRedis connects to url (e.g. "redis://localhost:6379/0") and
// returns a bus once the server answers a PING.
func NewWithRedis(url string, logger *slog.Logger, config *RedisEventBusConfig) (*RedisEventBus, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("redis event bus: url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis event bus: invalid URL: %w", err)
	}
	if config == nil {
		config = DefaultRedisEventBusConfig()
	}
	defaults := DefaultRedisEventBusConfig()
	if strings.TrimSpace(config.Prefix) == "" {
		config.Prefix = defaults.Prefix
	}
	if config.Group == "" {
		config.Group = defaults.Group
	}
	if config.Block <= 0 {
		config.Block = defaults.Block
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(opt)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis event bus: connection failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		client:    client,
		config:    config,
		logger:    logger.With("bus", "redis"),
		ctx:       ctx,
		cancel:    cancel,
		handlers:  make(map[events.EventType][]eventbus.HandlerFunc),
		consumers: make(map[events.EventType]struct{}),
	}
	bus.logger.Info("Redis event bus initialized", "prefix", config.Prefix, "group", config.Group)
	return bus, nil
}

// Emit appends the event to its stream.
func (b *RedisEventBus) Emit(ctx context.Context, event events.Event) error {
	raw, err := encodeEvent(event)
	if err != nil {
		return fmt.Errorf("redis event bus: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: streamNameFor(b.config.Prefix, event.Type()),
		Values: map[string]any{"event": string(raw)},
	}
	if b.config.MaxLen > 0 {
		args.MaxLen = b.config.MaxLen
		args.Approx = true
	}
	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis event bus: emit failed: %w", err)
	}
	b.logger.Debug("event emitted", "type", string(event.Type()))
	return nil
}

// Register adds handler for eventType and starts a consumer for the type's
// stream on first registration.
func (b *RedisEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	_, running := b.consumers[eventType]
	b.consumers[eventType] = struct{}{}
	b.mu.Unlock()

	if running {
		return
	}

	stream := streamNameFor(b.config.Prefix, eventType)
	err := b.client.XGroupCreateMkStream(b.ctx, stream, b.config.Group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		b.logger.Error("failed to create consumer group", "stream", stream, "error", err)
	}

	consumer := consumerName(eventType)
	b.logger.Info("registering handler", "event_type", string(eventType), "consumer", consumer)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(eventType, stream, consumer)
	}()
}

// Close stops the consumers and closes the client.
func (b *RedisEventBus) Close() error {
	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

func (b *RedisEventBus) consume(eventType events.EventType, stream, consumer string) {
	for {
		if b.ctx.Err() != nil {
			return
		}
		res, err := b.client.XReadGroup(b.ctx, &redis.XReadGroupArgs{
			Group:    b.config.Group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    b.config.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Error("error reading from stream", "stream", stream, "error", err)
			select {
			case <-b.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, s := range res {
			for _, msg := range s.Messages {
				b.handleMessage(eventType, stream, msg)
			}
		}
	}
}

func (b *RedisEventBus) handleMessage(eventType events.EventType, stream string, msg redis.XMessage) {
	defer func() {
		if err := b.client.XAck(b.ctx, stream, b.config.Group, msg.ID).Err(); err != nil {
			b.logger.Error("failed to ack message", "stream", stream, "id", msg.ID, "error", err)
		}
	}()

	raw, ok := msg.Values["event"].(string)
	if !ok {
		b.logger.Error("message without event field", "stream", stream, "id", msg.ID)
		return
	}
	evt, err := decodeEvent([]byte(raw))
	if err != nil {
		b.logger.Error("failed to decode event", "stream", stream, "id", msg.ID, "error", err)
		b.pushToDLQ(eventType, raw)
		return
	}

	b.mu.RLock()
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[eventType]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := b.runHandler(handler, evt); err != nil {
			b.logger.Error("handler error", "event_type", string(eventType), "id", msg.ID, "error", err)
			b.pushToDLQ(eventType, raw)
			return
		}
	}
}

func (b *RedisEventBus) runHandler(handler eventbus.HandlerFunc, evt events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(b.ctx, evt)
}

func (b *RedisEventBus) pushToDLQ(eventType events.EventType, raw string) {
	dlq := dlqStreamName(b.config.Prefix, eventType)
	err := b.client.XAdd(b.ctx, &redis.XAddArgs{
		Stream: dlq,
		Values: map[string]any{"event": raw, "failed_at": time.Now().UTC().Format(time.RFC3339)},
	}).Err()
	if err != nil {
		b.logger.Error("failed to push to DLQ", "stream", dlq, "error", err)
		return
	}
	b.logger.Warn("message sent to DLQ", "event_type", string(eventType), "dlq_stream", dlq)
}

func consumerName(eventType events.EventType) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "fx"
	}
	return fmt.Sprintf("%s-%s-%d", host, strings.ToLower(string(eventType)), time.Now().UnixNano())
}

var _ eventbus.Bus = (*RedisEventBus)(nil)
