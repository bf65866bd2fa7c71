// Package notice keeps a bounded list of recent non-blocking notices built
// from domain events, for display next to the dashboard.
package notice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rezkym/fx-exchange/pkg/domain/events"
	"github.com/rezkym/fx-exchange/pkg/eventbus"
)

// DefaultCapacity is the number of notices kept when none is configured.
const DefaultCapacity = 100

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing message derived from an event.
type Notice struct {
	ID         uuid.UUID        `json:"id"`
	Type       events.EventType `json:"type"`
	Level      Level            `json:"level"`
	Message    string           `json:"message"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Center is a ring buffer of notices. The zero value is not usable; use
// NewCenter.
type Center struct {
	mu    sync.Mutex
	buf   []Notice
	next  int
	full  bool
	level map[events.EventType]Level
	log   *slog.Logger
}

// NewCenter creates a center holding up to capacity notices.
func NewCenter(capacity int, logger *slog.Logger) *Center {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		buf: make([]Notice, capacity),
		level: map[events.EventType]Level{
			events.EventTypeRateFetchFailed:           LevelWarning,
			events.EventTypeRateHistoryFailed:         LevelError,
			events.EventTypeRateHistoryUnordered:      LevelWarning,
			events.EventTypeConversionFallbackApplied: LevelWarning,
		},
		log: logger.With("component", "notice_center"),
	}
}

// Subscribe registers the center on bus for every event that should reach
// the user.
func (c *Center) Subscribe(bus eventbus.Bus) {
	for t := range c.level {
		bus.Register(t, c.Handle)
	}
}

// Handle turns event into a notice. It satisfies eventbus.HandlerFunc.
func (c *Center) Handle(_ context.Context, event events.Event) error {
	msg, err := describe(event)
	if err != nil {
		return err
	}
	lvl, ok := c.level[event.Type()]
	if !ok {
		lvl = LevelInfo
	}
	n := Notice{
		ID:         uuid.New(),
		Type:       event.Type(),
		Level:      lvl,
		Message:    msg,
		OccurredAt: occurredAt(event),
	}
	c.push(n)
	c.log.Debug("Notice recorded", "type", string(n.Type), "message", n.Message)
	return nil
}

// Add records a notice that did not originate from an event.
func (c *Center) Add(level Level, message string) {
	c.push(Notice{ID: uuid.New(), Level: level, Message: message, OccurredAt: time.Now()})
}

// Recent returns up to limit notices, newest first. A non-positive limit
// returns everything kept.
func (c *Center) Recent(limit int) []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := c.next
	if c.full {
		size = len(c.buf)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]Notice, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (c.next - 1 - i + len(c.buf)) % len(c.buf)
		out = append(out, c.buf[idx])
	}
	return out
}

func (c *Center) push(n Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf[c.next] = n
	c.next = (c.next + 1) % len(c.buf)
	if c.next == 0 {
		c.full = true
	}
}

func describe(event events.Event) (string, error) {
	switch e := event.(type) {
	case *events.RateFetchFailed:
		return fmt.Sprintf("Live rate for %s is unavailable, showing last known value: %s", e.Pair, e.Error), nil
	case *events.RateHistoryFailed:
		return fmt.Sprintf("Could not load rate history for %s: %s", e.Pair, e.Error), nil
	case *events.RateHistoryUnordered:
		return fmt.Sprintf("Rate history for %s arrived out of order: %s", e.Pair, e.Detail), nil
	case *events.ConversionFallbackApplied:
		return fmt.Sprintf("No %s to %s rate available, counted at 1: %s", e.Currency, e.Reporting, e.Error), nil
	case *events.ConversionRefreshed:
		return fmt.Sprintf("Conversion rates into %s refreshed (%d currencies, %d fallbacks)",
			e.Reporting, e.Currencies, e.Fallbacks), nil
	case *events.RateTickApplied:
		return fmt.Sprintf("%s is now %g", e.Pair, e.Value), nil
	default:
		return "", fmt.Errorf("notice: unsupported event type %q", event.Type())
	}
}

func occurredAt(event events.Event) time.Time {
	type stamped interface{ Stamp() events.Meta }
	if s, ok := event.(stamped); ok && !s.Stamp().OccurredAt.IsZero() {
		return s.Stamp().OccurredAt
	}
	return time.Now()
}
