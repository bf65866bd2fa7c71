// Package conversion keeps a time-boxed cache of one-unit conversion rates
// from any currency into a single reporting currency.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/domain/events"
	"github.com/rezkym/fx-exchange/pkg/eventbus"
	"github.com/rezkym/fx-exchange/pkg/provider"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTTL is how long a refresh stays valid.
	DefaultTTL = 60 * time.Second
	// DefaultConcurrency bounds the conversion requests of one refresh.
	DefaultConcurrency = 4
	// FallbackRate is used for a currency whose conversion failed.
	FallbackRate = 1.0
)

// ErrInvalidRate marks a conversion answer that cannot be used as a rate.
var ErrInvalidRate = errors.New("invalid conversion rate")

// Entry is the cached rate of one currency into the reporting currency.
type Entry struct {
	Currency        currency.Code `json:"currency"`
	RateToReporting float64       `json:"rate_to_reporting"`
	RefreshedAt     time.Time     `json:"refreshed_at"`
	Fallback        bool          `json:"fallback"`
}

// Cache provides conversion rates into a fixed reporting currency, refreshed
// at most once per TTL and by at most one refresh at a time. It is shared by
// every caller that reports in the same currency.
type Cache struct {
	converter   provider.Converter
	reporting   currency.Code
	ttl         time.Duration
	concurrency int
	now         func() time.Time
	bus         eventbus.Bus
	logger      *slog.Logger

	mu          sync.Mutex
	entries     map[currency.Code]Entry
	refreshedAt time.Time
	refreshing  bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithConcurrency bounds the number of parallel conversion requests.
func WithConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithBus publishes refresh and fallback events to bus.
func WithBus(bus eventbus.Bus) Option {
	return func(c *Cache) {
		if bus != nil {
			c.bus = bus
		}
	}
}

// New creates an empty cache converting into reporting.
func New(
	converter provider.Converter,
	reporting currency.Code,
	logger *slog.Logger,
	opts ...Option,
) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		converter:   converter,
		reporting:   reporting,
		ttl:         DefaultTTL,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		bus:         eventbus.Nop{},
		logger:      logger.With("component", "conversion_cache", "reporting", string(reporting)),
		entries:     make(map[currency.Code]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reporting returns the currency every rate converts into.
func (c *Cache) Reporting() currency.Code {
	return c.reporting
}

// RefreshedAt returns when the last refresh completed; zero if never.
func (c *Cache) RefreshedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshedAt
}

// Entries returns a copy of every cached entry.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// GetRates returns one-unit rates into the reporting currency.
//
// Within the TTL the cached map is returned as is, whatever currencies are
// asked for. Once the TTL has elapsed the requested currencies are fetched
// again, one conversion each, and a failed currency falls back to a rate of
// 1. While a refresh is running other callers get the previous map instead
// of starting a second refresh.
func (c *Cache) GetRates(ctx context.Context, currencies []currency.Code) map[currency.Code]float64 {
	c.mu.Lock()
	if c.fresh() {
		c.logger.Debug("Cache hit for GetRates", "refreshed_at", c.refreshedAt)
		out := c.snapshot()
		c.mu.Unlock()
		return out
	}
	if c.refreshing {
		c.logger.Debug("Refresh in flight, serving previous rates")
		out := c.snapshot()
		c.mu.Unlock()
		return out
	}
	c.refreshing = true
	c.mu.Unlock()

	c.logger.Debug("Cache miss for GetRates, refreshing", "currencies", currencies)
	fetched := c.fetch(context.WithoutCancel(ctx), currencies)

	c.mu.Lock()
	refreshedAt := c.now()
	fallbacks := 0
	for code, e := range fetched {
		e.RefreshedAt = refreshedAt
		c.entries[code] = e
		if e.Fallback {
			fallbacks++
		}
	}
	c.refreshedAt = refreshedAt
	c.refreshing = false
	out := c.snapshot()
	c.mu.Unlock()

	c.emit(ctx, &events.ConversionRefreshed{
		Meta:       events.NewMeta(),
		Reporting:  c.reporting,
		Currencies: len(fetched),
		Fallbacks:  fallbacks,
	})
	c.logger.Info("Conversion rates refreshed", "currencies", len(fetched), "fallbacks", fallbacks)
	return out
}

// fresh must be called with mu held.
func (c *Cache) fresh() bool {
	return !c.refreshedAt.IsZero() && c.now().Sub(c.refreshedAt) < c.ttl
}

// snapshot must be called with mu held.
func (c *Cache) snapshot() map[currency.Code]float64 {
	out := make(map[currency.Code]float64, len(c.entries))
	for code, e := range c.entries {
		out[code] = e.RateToReporting
	}
	return out
}

func (c *Cache) fetch(ctx context.Context, currencies []currency.Code) map[currency.Code]Entry {
	var mu sync.Mutex
	out := make(map[currency.Code]Entry, len(currencies))
	seen := make(map[currency.Code]struct{}, len(currencies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, code := range currencies {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		if code == c.reporting {
			mu.Lock()
			out[code] = Entry{Currency: code, RateToReporting: 1}
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			r, err := c.convertOne(gctx, code)
			if err != nil {
				c.logger.Warn("Conversion failed, using fallback rate", "currency", string(code), "error", err)
				c.emit(ctx, &events.ConversionFallbackApplied{
					Meta:      events.NewMeta(),
					Currency:  code,
					Reporting: c.reporting,
					Error:     err.Error(),
				})
				mu.Lock()
				out[code] = Entry{Currency: code, RateToReporting: FallbackRate, Fallback: true}
				mu.Unlock()
				return nil
			}
			mu.Lock()
			out[code] = Entry{Currency: code, RateToReporting: r}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Cache) convertOne(ctx context.Context, code currency.Code) (float64, error) {
	res, err := c.converter.Convert(ctx, code, c.reporting, 1)
	if err != nil {
		return 0, err
	}
	r := res.Converted
	if !validRate(r) {
		r = res.Rate
	}
	if !validRate(r) {
		return 0, fmt.Errorf("%w: %s converted=%v rate=%v", ErrInvalidRate, code, res.Converted, res.Rate)
	}
	return r, nil
}

func validRate(r float64) bool {
	return r > 0 && !math.IsNaN(r) && !math.IsInf(r, 0)
}

func (c *Cache) emit(ctx context.Context, e events.Event) {
	if err := c.bus.Emit(ctx, e); err != nil {
		c.logger.Warn("Failed to emit conversion event", "type", string(e.Type()), "error", err)
	}
}
