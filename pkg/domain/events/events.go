// Package events defines the domain events emitted by the rate core.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/rezkym/fx-exchange/pkg/currency"
)

// EventType represents the type of an event in the system.
type EventType string

// Event type constants
const (
	// Rate events
	EventTypeRateTickApplied      EventType = "Rate.TickApplied"
	EventTypeRateFetchFailed      EventType = "Rate.FetchFailed"
	EventTypeRateHistoryFailed    EventType = "Rate.HistoryFailed"
	EventTypeRateHistoryUnordered EventType = "Rate.HistoryUnordered"

	// Conversion events
	EventTypeConversionRefreshed       EventType = "Conversion.Refreshed"
	EventTypeConversionFallbackApplied EventType = "Conversion.FallbackApplied"
)

// Event is implemented by every domain event.
type Event interface {
	Type() EventType
}

// Meta carries identity and timing common to all events.
type Meta struct {
	ID         uuid.UUID `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewMeta stamps a fresh event identity.
func NewMeta() Meta {
	return Meta{ID: uuid.New(), OccurredAt: time.Now()}
}

// Stamp exposes the metadata of any event embedding Meta.
func (m Meta) Stamp() Meta { return m }

// RateTickApplied is emitted when a live tick advanced a pair's series.
type RateTickApplied struct {
	Meta
	Pair  currency.Pair `json:"pair"`
	Time  time.Time     `json:"time"`
	Value float64       `json:"value"`
}

func (e *RateTickApplied) Type() EventType { return EventTypeRateTickApplied }

// RateFetchFailed is emitted when a live rate fetch failed. The last known
// value is kept.
type RateFetchFailed struct {
	Meta
	Pair  currency.Pair `json:"pair"`
	Error string        `json:"error"`
}

func (e *RateFetchFailed) Type() EventType { return EventTypeRateFetchFailed }

// RateHistoryFailed is emitted when a history refresh failed.
type RateHistoryFailed struct {
	Meta
	Pair  currency.Pair `json:"pair"`
	Error string        `json:"error"`
}

func (e *RateHistoryFailed) Type() EventType { return EventTypeRateHistoryFailed }

// RateHistoryUnordered is emitted when upstream history arrived out of order.
type RateHistoryUnordered struct {
	Meta
	Pair   currency.Pair `json:"pair"`
	Detail string        `json:"detail"`
}

func (e *RateHistoryUnordered) Type() EventType { return EventTypeRateHistoryUnordered }

// ConversionRefreshed is emitted after a conversion cache refresh cycle.
type ConversionRefreshed struct {
	Meta
	Reporting  currency.Code `json:"reporting"`
	Currencies int           `json:"currencies"`
	Fallbacks  int           `json:"fallbacks"`
}

func (e *ConversionRefreshed) Type() EventType { return EventTypeConversionRefreshed }

// ConversionFallbackApplied is emitted when a currency's conversion failed
// and the rate fell back to 1.
type ConversionFallbackApplied struct {
	Meta
	Currency  currency.Code `json:"currency"`
	Reporting currency.Code `json:"reporting"`
	Error     string        `json:"error"`
}

func (e *ConversionFallbackApplied) Type() EventType { return EventTypeConversionFallbackApplied }

// EventTypes maps every event type to a constructor, used by transports that
// need to decode payloads back into concrete events.
var EventTypes = map[EventType]func() Event{
	EventTypeRateTickApplied:           func() Event { return &RateTickApplied{} },
	EventTypeRateFetchFailed:           func() Event { return &RateFetchFailed{} },
	EventTypeRateHistoryFailed:         func() Event { return &RateHistoryFailed{} },
	EventTypeRateHistoryUnordered:      func() Event { return &RateHistoryUnordered{} },
	EventTypeConversionRefreshed:       func() Event { return &ConversionRefreshed{} },
	EventTypeConversionFallbackApplied: func() Event { return &ConversionFallbackApplied{} },
}
