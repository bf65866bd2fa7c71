// Package dashboard holds the controllers behind the dashboard pages: a
// Watcher per displayed currency pair, the Board that owns them, and the
// AccountsView that totals wallet balances.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rezkym/fx-exchange/pkg/change"
	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/domain/events"
	"github.com/rezkym/fx-exchange/pkg/eventbus"
	"github.com/rezkym/fx-exchange/pkg/feed"
	"github.com/rezkym/fx-exchange/pkg/provider"
	"github.com/rezkym/fx-exchange/pkg/rate"
)

var (
	ErrNotWatching   = errors.New("no currency pair selected")
	ErrInvalidPair   = errors.New("invalid currency pair")
	ErrInvalidWindow = errors.New("invalid history window")
	ErrBoardClosed   = errors.New("board is closed")
)

var validate = validator.New()

// RateSource is the part of the upstream API a Watcher needs.
type RateSource interface {
	provider.LiveRateFetcher
	provider.HistoryFetcher
}

// Config tunes a Watcher.
type Config struct {
	// PollInterval is the live rate polling period.
	PollInterval time.Duration
	// HistoryInterval is the scheduled history refresh period; zero disables
	// the scheduled refresh.
	HistoryInterval time.Duration
	// Window is the history window used until SetWindow is called.
	Window provider.HistoryWindow
}

// DefaultConfig polls every 10 seconds and reloads a 24 hour window every
// 5 minutes.
func DefaultConfig() Config {
	return Config{
		PollInterval:    10 * time.Second,
		HistoryInterval: 5 * time.Minute,
		Window:          provider.DefaultWindow,
	}
}

// View is what the rate page renders.
type View struct {
	Pair            currency.Pair          `json:"pair"`
	Window          provider.HistoryWindow `json:"window"`
	Series          []rate.Point           `json:"series"`
	Current         float64                `json:"current"`
	CurrentChange   change.Result          `json:"current_change"`
	WindowChange    change.Result          `json:"window_change"`
	LastTick        *rate.Point            `json:"last_tick,omitempty"`
	HistoryLoadedAt time.Time              `json:"history_loaded_at"`
	Live            bool                   `json:"live"`
}

// Watcher is the controller of one rate page. It owns the series store and
// the live feed of the selected pair.
type Watcher struct {
	api    RateSource
	bus    eventbus.Bus
	logger *slog.Logger
	cfg    Config
	feed   *feed.Live
	now    func() time.Time

	// ctx outlives the requests that select pairs; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	// lifecycle serializes Select, SetWindow and Stop.
	lifecycle sync.Mutex

	mu          sync.Mutex
	pair        currency.Pair
	window      provider.HistoryWindow
	store       *rate.Store
	version     uint64
	historyAt   time.Time
	historyStop context.CancelFunc
	historyDone chan struct{}
}

// NewWatcher creates a watcher with no pair selected.
func NewWatcher(api RateSource, bus eventbus.Bus, logger *slog.Logger, cfg Config) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.Window == (provider.HistoryWindow{}) {
		cfg.Window = provider.DefaultWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		api:    api,
		bus:    bus,
		logger: logger.With("component", "rate_watcher"),
		cfg:    cfg,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		window: cfg.Window,
	}
	w.feed = feed.New(api, logger)
	w.feed.Subscribe(w.onTick)
	w.feed.OnError(w.onFeedError)
	return w
}

// Select switches the page to pair: the previous series is discarded, the
// history for the current window is loaded and the live feed restarts on
// the new pair. A history failure leaves an empty series and is reported as
// a notice.
func (w *Watcher) Select(ctx context.Context, pair currency.Pair) error {
	if err := validatePair(pair); err != nil {
		return err
	}

	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.stopHistoryLoop()

	w.mu.Lock()
	w.pair = pair
	w.store = rate.NewStore(pair)
	w.historyAt = time.Time{}
	w.version++
	w.mu.Unlock()

	w.logger.Info("Watching pair", "pair", pair.String(), "window", w.Window())

	_ = w.loadHistory(ctx)
	if err := w.feed.Start(w.ctx, pair, w.cfg.PollInterval); err != nil {
		return fmt.Errorf("start live feed: %w", err)
	}
	w.startHistoryLoop()
	return nil
}

// SetWindow changes the history window and reloads the history.
func (w *Watcher) SetWindow(ctx context.Context, window provider.HistoryWindow) error {
	if err := validate.Struct(window); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWindow, err)
	}

	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.mu.Lock()
	if w.store == nil {
		w.mu.Unlock()
		return ErrNotWatching
	}
	w.window = window
	w.version++
	w.mu.Unlock()

	_ = w.loadHistory(ctx)
	return nil
}

// Refresh reloads the history and fetches the live rate right away. The
// polling schedule is unchanged. Upstream failures are returned but leave the
// last known state in place.
func (w *Watcher) Refresh(ctx context.Context) error {
	w.mu.Lock()
	watching := w.store != nil
	w.mu.Unlock()
	if !watching {
		return ErrNotWatching
	}

	histErr := w.loadHistory(ctx)
	_, liveErr := w.feed.FetchOnce(ctx)
	if err := errors.Join(histErr, liveErr); err != nil {
		return fmt.Errorf("%w: %w", provider.ErrProviderUnavailable, err)
	}
	return nil
}

// View derives the page state from the merged series.
func (w *Watcher) View() (View, error) {
	w.mu.Lock()
	store, pair, window, historyAt := w.store, w.pair, w.window, w.historyAt
	w.mu.Unlock()
	if store == nil {
		return View{}, ErrNotWatching
	}

	series := store.Snapshot()
	v := View{
		Pair:            pair,
		Window:          window,
		Series:          series,
		HistoryLoadedAt: historyAt,
		Live:            w.feed.Running(),
	}
	if live, ok := store.Live(); ok {
		v.LastTick = &live
		v.Current = live.Value
	}
	if n := len(series); n > 0 {
		v.Current = series[n-1].Value
	}
	if len(series) > 0 {
		v.CurrentChange = change.Current(series, v.Current)
		v.WindowChange = change.Window(series, v.Current)
	} else {
		v.CurrentChange = change.Result{Kind: change.Neutral}
		v.WindowChange = change.Result{Kind: change.Neutral}
	}
	return v, nil
}

// Pair returns the selected pair, zero if none.
func (w *Watcher) Pair() currency.Pair {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pair
}

// Window returns the active history window.
func (w *Watcher) Window() provider.HistoryWindow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.window
}

// Stop stops the live feed and the scheduled history refresh. Once Stop
// returns no tick reaches the store. A stopped watcher is not reusable.
func (w *Watcher) Stop() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.feed.Stop()
	w.stopHistoryLoop()
	w.cancel()
	w.logger.Info("Watcher stopped", "pair", w.Pair().String())
}

func (w *Watcher) onTick(tick feed.Tick) {
	w.mu.Lock()
	store, pair := w.store, w.pair
	w.mu.Unlock()

	// Responses for a pair that is no longer displayed are dropped.
	if store == nil || tick.Point.Pair() != pair {
		w.logger.Debug("Dropping stale tick",
			"requested", tick.Requested.String(),
			"answered", tick.Point.Pair().String(),
			"active", pair.String())
		return
	}

	store.Append(tick.Point)
	store.ObserveLive(tick.Point)
	w.emit(&events.RateTickApplied{
		Meta:  events.NewMeta(),
		Pair:  pair,
		Time:  tick.Point.Time,
		Value: tick.Point.Value,
	})
}

func (w *Watcher) onFeedError(pair currency.Pair, err error) {
	w.emit(&events.RateFetchFailed{Meta: events.NewMeta(), Pair: pair, Error: err.Error()})
}

func (w *Watcher) loadHistory(ctx context.Context) error {
	w.mu.Lock()
	pair, window, version := w.pair, w.window, w.version
	w.mu.Unlock()

	points, err := w.api.GetHistory(ctx, pair, window)
	if err != nil && ctx.Err() != nil {
		// Cancelled by the caller or by stopping the history loop.
		w.logger.Debug("History load cancelled", "pair", pair.String(), "error", err)
		return fmt.Errorf("load history %s: %w", pair, ctx.Err())
	}
	if err != nil {
		w.logger.Warn("History refresh failed, keeping last known series", "pair", pair.String(), "error", err)
		w.emit(&events.RateHistoryFailed{Meta: events.NewMeta(), Pair: pair, Error: err.Error()})
		return fmt.Errorf("load history %s: %w", pair, err)
	}
	if err := rate.CheckOrdered(points); err != nil {
		w.logger.Warn("Upstream history is not time-ordered", "pair", pair.String(), "error", err)
		w.emit(&events.RateHistoryUnordered{Meta: events.NewMeta(), Pair: pair, Detail: err.Error()})
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if version != w.version {
		w.logger.Debug("Discarding history for a previous selection", "pair", pair.String())
		return nil
	}
	w.store.ReplaceHistory(points)
	w.historyAt = w.now()
	w.logger.Debug("History loaded", "pair", pair.String(), "points", len(points))
	return nil
}

func (w *Watcher) startHistoryLoop() {
	if w.cfg.HistoryInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(w.ctx)
	done := make(chan struct{})

	w.mu.Lock()
	w.historyStop, w.historyDone = cancel, done
	w.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.cfg.HistoryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = w.loadHistory(ctx)
			}
		}
	}()
}

func (w *Watcher) stopHistoryLoop() {
	w.mu.Lock()
	stop, done := w.historyStop, w.historyDone
	w.historyStop, w.historyDone = nil, nil
	w.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

func (w *Watcher) emit(e events.Event) {
	if err := w.bus.Emit(w.ctx, e); err != nil {
		w.logger.Warn("Failed to emit event", "type", string(e.Type()), "error", err)
	}
}

func validatePair(pair currency.Pair) error {
	if err := currency.ValidateCode(pair.Source); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPair, err)
	}
	if err := currency.ValidateCode(pair.Target); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPair, err)
	}
	return nil
}
