package eventbus

import (
	"context"

	"github.com/rezkym/fx-exchange/pkg/domain/events"
)

// HandlerFunc handles a single event.
type HandlerFunc func(ctx context.Context, event events.Event) error

// Bus defines the contract for publishing and subscribing to domain events.
type Bus interface {
	Emit(ctx context.Context, event events.Event) error
	Register(eventType events.EventType, handler HandlerFunc)
}

// Nop is a Bus that drops every event.
type Nop struct{}

func (Nop) Emit(context.Context, events.Event) error { return nil }

func (Nop) Register(events.EventType, HandlerFunc) {}

var _ Bus = Nop{}
