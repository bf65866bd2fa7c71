// Package feed polls the current rate of a currency pair on a fixed interval
// and fans every fresh observation out to subscribers.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/rate"
)

var (
	// ErrNotStarted is returned by FetchOnce when no polling cycle is active.
	ErrNotStarted = errors.New("live feed not started")
	// ErrInvalidInterval is returned by Start for a non-positive interval.
	ErrInvalidInterval = errors.New("live feed interval must be positive")
)

// Fetcher fetches the current rate of a pair.
type Fetcher interface {
	GetLive(ctx context.Context, pair currency.Pair) (rate.Point, error)
}

// Tick is a single live observation. Requested is the pair the fetch was
// issued for; Point carries the pair the upstream answered with.
type Tick struct {
	Requested  currency.Pair
	Point      rate.Point
	ReceivedAt time.Time
}

// Live owns the polling lifecycle for one currency pair at a time.
//
// Subscribers and error handlers run on the fetching goroutine and must not
// call Start or Stop.
type Live struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time

	// deliverMu serializes deliveries against Stop so that no tick reaches a
	// subscriber once Stop has returned.
	deliverMu sync.Mutex

	mu       sync.Mutex
	gen      uint64
	running  bool
	pair     currency.Pair
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	last     *rate.Point
	nextID   int
	subs     map[int]func(Tick)
	onError  []func(currency.Pair, error)
}

// Option configures a Live feed.
type Option func(*Live)

// WithClock overrides the time source used to stamp ticks.
func WithClock(now func() time.Time) Option {
	return func(l *Live) { l.now = now }
}

// New creates a stopped feed.
func New(fetcher Fetcher, logger *slog.Logger, opts ...Option) *Live {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Live{
		fetcher: fetcher,
		logger:  logger.With("component", "live_feed"),
		now:     time.Now,
		subs:    make(map[int]func(Tick)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Subscribe registers fn for every delivered tick and returns a function
// that removes it.
func (l *Live) Subscribe(fn func(Tick)) (unsubscribe func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// OnError registers fn to be told about failed fetches of the active cycle.
func (l *Live) OnError(fn func(pair currency.Pair, err error)) {
	l.mu.Lock()
	l.onError = append(l.onError, fn)
	l.mu.Unlock()
}

// Start fetches pair immediately and then every interval until Stop is
// called or ctx is done. Starting an already running feed restarts the cycle
// with the new pair and interval; responses from the previous cycle are not
// delivered.
func (l *Live) Start(ctx context.Context, pair currency.Pair, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	l.Stop()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.running = true
	l.pair = pair
	l.interval = interval
	l.cancel = cancel
	l.done = done
	l.last = nil
	l.mu.Unlock()

	l.logger.Info("Live feed started", "pair", pair.String(), "interval", interval)

	go func() { _, _ = l.fetch(ctx, gen, pair) }()
	go l.run(loopCtx, ctx, gen, pair, interval, done)
	return nil
}

// Stop cancels the polling timer. When Stop returns no further tick is
// delivered, although fetches already in flight are left to finish.
func (l *Live) Stop() {
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.gen++
	l.running = false
	cancel, done, pair := l.cancel, l.done, l.pair
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	cancel()
	<-done
	l.logger.Info("Live feed stopped", "pair", pair.String())
}

// FetchOnce fetches the active pair right away without touching the
// periodic schedule. The result is delivered to subscribers like any tick.
func (l *Live) FetchOnce(ctx context.Context) (rate.Point, error) {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return rate.Point{}, ErrNotStarted
	}
	gen, pair := l.gen, l.pair
	l.mu.Unlock()

	return l.fetch(ctx, gen, pair)
}

// Last returns the last delivered observation of the active cycle.
func (l *Live) Last() (rate.Point, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return rate.Point{}, false
	}
	return *l.last, true
}

// Pair returns the pair of the active or most recent cycle.
func (l *Live) Pair() currency.Pair {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pair
}

// Interval returns the polling interval of the active or most recent cycle.
func (l *Live) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// Running reports whether a polling cycle is active.
func (l *Live) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Live) run(
	loopCtx, fetchCtx context.Context,
	gen uint64,
	pair currency.Pair,
	interval time.Duration,
	done chan struct{},
) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-loopCtx.Done():
			return
		case <-ticker.C:
			// A slow fetch must not hold back the schedule.
			go func() { _, _ = l.fetch(fetchCtx, gen, pair) }()
		}
	}
}

func (l *Live) fetch(ctx context.Context, gen uint64, pair currency.Pair) (rate.Point, error) {
	p, err := l.fetcher.GetLive(ctx, pair)
	if err != nil {
		l.logger.Warn("Live rate fetch failed", "pair", pair.String(), "error", err)
		l.reportError(gen, pair, err)
		return rate.Point{}, fmt.Errorf("fetch live rate %s: %w", pair, err)
	}
	l.deliver(gen, Tick{Requested: pair, Point: p, ReceivedAt: l.now()})
	return p, nil
}

func (l *Live) deliver(gen uint64, tick Tick) {
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	if !l.running || gen != l.gen {
		l.mu.Unlock()
		l.logger.Debug("Dropping tick from a finished cycle", "pair", tick.Requested.String())
		return
	}
	p := tick.Point
	l.last = &p
	subs := make([]func(Tick), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(tick)
	}
}

func (l *Live) reportError(gen uint64, pair currency.Pair, err error) {
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	if !l.running || gen != l.gen {
		l.mu.Unlock()
		return
	}
	handlers := append([]func(currency.Pair, error){}, l.onError...)
	l.mu.Unlock()

	for _, fn := range handlers {
		fn(pair, err)
	}
}
