package dashboard_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rezkym/fx-exchange/pkg/balance"
	"github.com/rezkym/fx-exchange/pkg/change"
	"github.com/rezkym/fx-exchange/pkg/conversion"
	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/dashboard"
	"github.com/rezkym/fx-exchange/pkg/domain/events"
	"github.com/rezkym/fx-exchange/pkg/eventbus"
	"github.com/rezkym/fx-exchange/pkg/provider"
	"github.com/rezkym/fx-exchange/pkg/rate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	eurIdr = currency.Pair{Source: currency.EUR, Target: currency.IDR}
	usdIdr = currency.Pair{Source: currency.USD, Target: currency.IDR}
)

type fakeAPI struct {
	mu          sync.Mutex
	live        func(pair currency.Pair) (rate.Point, error)
	history     map[currency.Pair][]rate.Point
	historyErr  error
	windows     []provider.HistoryWindow
	historyHits int
}

func (f *fakeAPI) GetLive(_ context.Context, pair currency.Pair) (rate.Point, error) {
	f.mu.Lock()
	fn := f.live
	f.mu.Unlock()
	if fn == nil {
		return rate.Point{}, errors.New("no live rate")
	}
	return fn(pair)
}

func (f *fakeAPI) GetHistory(_ context.Context, pair currency.Pair, window provider.HistoryWindow) ([]rate.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, window)
	f.historyHits++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[pair], nil
}

func (f *fakeAPI) hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyHits
}

type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Emit(_ context.Context, e events.Event) error {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
	return nil
}

func (b *captureBus) Register(events.EventType, eventbus.HandlerFunc) {}

func (b *captureBus) count(t events.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type() == t {
			n++
		}
	}
	return n
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func at(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func point(pair currency.Pair, sec int64, v float64) rate.Point {
	return rate.Point{Time: at(sec), Value: v, Source: pair.Source, Target: pair.Target}
}

func slowConfig() dashboard.Config {
	return dashboard.Config{PollInterval: time.Hour, Window: provider.DefaultWindow}
}

func TestWatcher_LiveTickExtendsHistory(t *testing.T) {
	api := &fakeAPI{
		history: map[currency.Pair][]rate.Point{
			eurIdr: {point(eurIdr, 0, 100), point(eurIdr, 60, 100)},
		},
		live: func(pair currency.Pair) (rate.Point, error) {
			return point(pair, 120, 105), nil
		},
	}
	bus := &captureBus{}
	w := dashboard.NewWatcher(api, bus, newLogger(), slowConfig())
	defer w.Stop()

	require.NoError(t, w.Select(context.Background(), eurIdr))

	require.Eventually(t, func() bool {
		v, err := w.View()
		return err == nil && len(v.Series) == 3
	}, time.Second, 5*time.Millisecond)

	v, err := w.View()
	require.NoError(t, err)
	assert.Equal(t, eurIdr, v.Pair)
	assert.Equal(t, 105.0, v.Series[2].Value)
	assert.Equal(t, 105.0, v.Current)
	assert.Equal(t, change.Result{Delta: 5, Kind: change.Positive}, v.CurrentChange)
	assert.Equal(t, change.Result{Delta: 5, Kind: change.Positive}, v.WindowChange)
	require.NotNil(t, v.LastTick)
	assert.True(t, v.Live)
	assert.False(t, v.HistoryLoadedAt.IsZero())
	assert.Equal(t, 1, bus.count(events.EventTypeRateTickApplied))
}

func TestWatcher_DropsTicksForAnotherPair(t *testing.T) {
	api := &fakeAPI{
		history: map[currency.Pair][]rate.Point{
			eurIdr: {point(eurIdr, 0, 100), point(eurIdr, 60, 100)},
		},
		live: func(currency.Pair) (rate.Point, error) {
			return point(usdIdr, 120, 15000), nil
		},
	}
	bus := &captureBus{}
	w := dashboard.NewWatcher(api, bus, newLogger(), slowConfig())
	defer w.Stop()

	require.NoError(t, w.Select(context.Background(), eurIdr))
	_ = w.Refresh(context.Background())

	v, err := w.View()
	require.NoError(t, err)
	assert.Len(t, v.Series, 2)
	assert.Nil(t, v.LastTick)
	assert.Zero(t, bus.count(events.EventTypeRateTickApplied))
}

func TestWatcher_HistoryFailureKeepsLastSeries(t *testing.T) {
	api := &fakeAPI{
		history: map[currency.Pair][]rate.Point{
			eurIdr: {point(eurIdr, 0, 100), point(eurIdr, 60, 101)},
		},
	}
	bus := &captureBus{}
	w := dashboard.NewWatcher(api, bus, newLogger(), slowConfig())
	defer w.Stop()

	require.NoError(t, w.Select(context.Background(), eurIdr))

	api.mu.Lock()
	api.historyErr = errors.New("upstream 500")
	api.mu.Unlock()

	err := w.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrProviderUnavailable)

	v, err := w.View()
	require.NoError(t, err)
	assert.Len(t, v.Series, 2, "last known history is kept")
	assert.Equal(t, 1, bus.count(events.EventTypeRateHistoryFailed))
	assert.GreaterOrEqual(t, bus.count(events.EventTypeRateFetchFailed), 1)
}

func TestWatcher_UnorderedHistoryIsAcceptedAndReported(t *testing.T) {
	unordered := []rate.Point{point(eurIdr, 60, 101), point(eurIdr, 0, 100)}
	api := &fakeAPI{history: map[currency.Pair][]rate.Point{eurIdr: unordered}}
	bus := &captureBus{}
	w := dashboard.NewWatcher(api, bus, newLogger(), slowConfig())
	defer w.Stop()

	require.NoError(t, w.Select(context.Background(), eurIdr))

	v, err := w.View()
	require.NoError(t, err)
	assert.Equal(t, unordered, v.Series)
	assert.Equal(t, 1, bus.count(events.EventTypeRateHistoryUnordered))
}

func TestWatcher_SetWindow(t *testing.T) {
	api := &fakeAPI{history: map[currency.Pair][]rate.Point{}}
	w := dashboard.NewWatcher(api, nil, newLogger(), slowConfig())
	defer w.Stop()

	week := provider.HistoryWindow{Length: 7, Unit: "day", Resolution: "hour"}
	assert.ErrorIs(t, w.SetWindow(context.Background(), week), dashboard.ErrNotWatching)

	require.NoError(t, w.Select(context.Background(), eurIdr))
	require.NoError(t, w.SetWindow(context.Background(), week))
	assert.Equal(t, week, w.Window())

	api.mu.Lock()
	last := api.windows[len(api.windows)-1]
	api.mu.Unlock()
	assert.Equal(t, week, last)

	err := w.SetWindow(context.Background(), provider.HistoryWindow{Length: 0, Unit: "year", Resolution: "hour"})
	assert.ErrorIs(t, err, dashboard.ErrInvalidWindow)
	assert.Equal(t, week, w.Window())
}

func TestWatcher_PeriodicHistoryRefresh(t *testing.T) {
	api := &fakeAPI{history: map[currency.Pair][]rate.Point{}}
	cfg := slowConfig()
	cfg.HistoryInterval = 10 * time.Millisecond
	w := dashboard.NewWatcher(api, nil, newLogger(), cfg)

	require.NoError(t, w.Select(context.Background(), eurIdr))
	assert.Eventually(t, func() bool { return api.hits() >= 3 }, time.Second, 5*time.Millisecond)

	w.Stop()
	hits := api.hits()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, hits, api.hits(), "history refresh must stop with the watcher")
}

// blockingHistoryAPI serves the first history load and holds later ones
// until their context ends.
type blockingHistoryAPI struct {
	*fakeAPI
	mu      sync.Mutex
	calls   int
	blocked chan struct{}
}

func (b *blockingHistoryAPI) GetHistory(ctx context.Context, pair currency.Pair, window provider.HistoryWindow) ([]rate.Point, error) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()
	if first {
		return b.fakeAPI.GetHistory(ctx, pair, window)
	}
	select {
	case b.blocked <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWatcher_StopDuringHistoryLoadIsNotAFailure(t *testing.T) {
	api := &blockingHistoryAPI{
		fakeAPI: &fakeAPI{history: map[currency.Pair][]rate.Point{}},
		blocked: make(chan struct{}, 1),
	}
	bus := &captureBus{}
	cfg := slowConfig()
	cfg.HistoryInterval = 10 * time.Millisecond
	w := dashboard.NewWatcher(api, bus, newLogger(), cfg)

	require.NoError(t, w.Select(context.Background(), eurIdr))
	select {
	case <-api.blocked:
	case <-time.After(time.Second):
		t.Fatal("scheduled history load did not start")
	}

	w.Stop()
	assert.Zero(t, bus.count(events.EventTypeRateHistoryFailed))
}

func TestWatcher_ViewBeforeSelectAndInvalidPair(t *testing.T) {
	w := dashboard.NewWatcher(&fakeAPI{}, nil, newLogger(), slowConfig())
	defer w.Stop()

	_, err := w.View()
	assert.ErrorIs(t, err, dashboard.ErrNotWatching)
	assert.ErrorIs(t, w.Refresh(context.Background()), dashboard.ErrNotWatching)

	err = w.Select(context.Background(), currency.Pair{Source: "eu", Target: currency.IDR})
	assert.ErrorIs(t, err, dashboard.ErrInvalidPair)
}

func TestBoard_Lifecycle(t *testing.T) {
	api := &fakeAPI{history: map[currency.Pair][]rate.Point{}}
	board := dashboard.NewBoard(api, nil, newLogger(), slowConfig())

	first, err := board.Watch(context.Background(), eurIdr)
	require.NoError(t, err)
	again, err := board.Watch(context.Background(), eurIdr)
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = board.Watch(context.Background(), usdIdr)
	require.NoError(t, err)
	assert.Equal(t, []currency.Pair{eurIdr, usdIdr}, board.Pairs())

	got, err := board.Get(usdIdr)
	require.NoError(t, err)
	assert.Equal(t, usdIdr, got.Pair())

	require.NoError(t, board.Unwatch(usdIdr))
	assert.ErrorIs(t, board.Unwatch(usdIdr), dashboard.ErrNotWatching)
	_, err = board.Get(usdIdr)
	assert.ErrorIs(t, err, dashboard.ErrNotWatching)

	board.Close()
	assert.Empty(t, board.Pairs())
	_, err = board.Watch(context.Background(), eurIdr)
	assert.ErrorIs(t, err, dashboard.ErrBoardClosed)
}

type fakeAccounts struct {
	accounts []balance.Account
	err      error
}

func (f fakeAccounts) ListAccounts(context.Context) ([]balance.Account, error) {
	return f.accounts, f.err
}

type fixedConverter map[currency.Code]float64

func (f fixedConverter) Convert(_ context.Context, from, _ currency.Code, amount float64) (provider.Conversion, error) {
	r, ok := f[from]
	if !ok {
		return provider.Conversion{}, errors.New("unsupported currency")
	}
	return provider.Conversion{Converted: r * amount, Rate: r}, nil
}

func TestAccountsView_Total(t *testing.T) {
	accounts := fakeAccounts{accounts: []balance.Account{
		{ID: uuid.New(), Name: "Main", Wallets: []balance.Wallet{{Currency: currency.USD, Balance: 100}}},
		{ID: uuid.New(), Name: "Savings", Wallets: []balance.Wallet{{Currency: currency.IDR, Balance: 1_000_000}}},
	}}
	cache := conversion.New(fixedConverter{currency.IDR: 0.000065}, currency.USD, newLogger())
	view := dashboard.NewAccountsView(accounts, cache, newLogger())

	total, err := view.Total(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 165.0, total.Amount, 1e-9)
	assert.Equal(t, currency.USD, total.Currency)
	assert.False(t, total.RatesAsOf.IsZero())
}

func TestAccountsView_ListFailure(t *testing.T) {
	cache := conversion.New(fixedConverter{}, currency.USD, newLogger())
	view := dashboard.NewAccountsView(fakeAccounts{err: errors.New("accounts down")}, cache, newLogger())

	_, err := view.Total(context.Background())
	assert.EqualError(t, err, "list accounts: accounts down")
}
