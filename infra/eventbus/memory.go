package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rezkym/fx-exchange/pkg/domain/events"
	"github.com/rezkym/fx-exchange/pkg/eventbus"
)

// MemoryEventBus dispatches events synchronously to the registered handlers.
type MemoryEventBus struct {
	handlers  map[events.EventType][]eventbus.HandlerFunc
	mu        sync.RWMutex
	logger    *slog.Logger
	published []events.Event
}

// NewWithMemory creates a synchronous in-process bus.
func NewWithMemory(logger *slog.Logger) *MemoryEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryEventBus{
		handlers: make(map[events.EventType][]eventbus.HandlerFunc),
		logger:   logger.With("bus", "memory"),
	}
}

// Register registers a handler for a specific event type.
func (b *MemoryEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit dispatches the event to all registered handlers for its type. Handler
// errors are logged, not returned.
func (b *MemoryEventBus) Emit(ctx context.Context, event events.Event) error {
	b.mu.Lock()
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[event.Type()]...)
	b.published = append(b.published, event)
	b.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Error("failed to process event", "type", string(event.Type()), "error", err)
		}
	}
	return nil
}

// Published returns a copy of every emitted event.
func (b *MemoryEventBus) Published() []events.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]events.Event(nil), b.published...)
}

// ClearPublished forgets the emitted events.
func (b *MemoryEventBus) ClearPublished() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = nil
}

var _ eventbus.Bus = (*MemoryEventBus)(nil)

type queued struct {
	ctx   context.Context
	event events.Event
}

// MemoryAsyncEventBus queues events and runs handlers on background
// goroutines, so a slow handler never blocks the emitter.
type MemoryAsyncEventBus struct {
	handlers map[events.EventType][]eventbus.HandlerFunc
	mu       sync.RWMutex
	eventCh  chan queued
	log      *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// NewWithMemoryAsync creates an asynchronous in-process bus with a queue of
// 100 events.
func NewWithMemoryAsync(logger *slog.Logger) *MemoryAsyncEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &MemoryAsyncEventBus{
		handlers: make(map[events.EventType][]eventbus.HandlerFunc),
		eventCh:  make(chan queued, 100),
		log:      logger.With("bus", "memory-async"),
		closed:   make(chan struct{}),
	}
	b.wg.Add(1)
	go b.process()
	return b
}

func (b *MemoryAsyncEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}

// Emit queues the event. It blocks only while the queue is full and returns
// ctx's error if ctx ends first.
func (b *MemoryAsyncEventBus) Emit(ctx context.Context, event events.Event) error {
	select {
	case <-b.closed:
		return ErrBusClosed
	default:
	}
	select {
	case b.eventCh <- queued{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	case <-b.closed:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for queued ones to be handled.
func (b *MemoryAsyncEventBus) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	b.wg.Wait()
	return nil
}

func (b *MemoryAsyncEventBus) process() {
	defer b.wg.Done()
	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case w := <-b.eventCh:
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				b.dispatch(w)
			}()
		case <-b.closed:
			for {
				select {
				case w := <-b.eventCh:
					b.dispatch(w)
				default:
					return
				}
			}
		}
	}
}

func (b *MemoryAsyncEventBus) dispatch(w queued) {
	b.mu.RLock()
	handlers := append([]eventbus.HandlerFunc{}, b.handlers[w.event.Type()]...)
	b.mu.RUnlock()
	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("panic recovered in event handler", "type", string(w.event.Type()), "panic", r)
				}
			}()
			if err := handler(w.ctx, w.event); err != nil {
				b.log.Error("failed to process event", "type", string(w.event.Type()), "error", err)
			}
		}()
	}
}

var _ eventbus.Bus = (*MemoryAsyncEventBus)(nil)
