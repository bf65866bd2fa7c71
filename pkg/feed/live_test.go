package feed_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/feed"
	"github.com/rezkym/fx-exchange/pkg/rate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	eurIdr = currency.Pair{Source: currency.EUR, Target: currency.IDR}
	usdIdr = currency.Pair{Source: currency.USD, Target: currency.IDR}
)

// fakeFetcher answers with a monotonically increasing point per call unless
// fn overrides the behaviour.
type fakeFetcher struct {
	calls atomic.Int64
	fn    func(ctx context.Context, pair currency.Pair, n int64) (rate.Point, error)
}

func (f *fakeFetcher) GetLive(ctx context.Context, pair currency.Pair) (rate.Point, error) {
	n := f.calls.Add(1)
	if f.fn != nil {
		return f.fn(ctx, pair, n)
	}
	return rate.Point{
		Time:   time.Unix(n, 0),
		Value:  float64(n),
		Source: pair.Source,
		Target: pair.Target,
	}, nil
}

type recorder struct {
	mu    sync.Mutex
	ticks []feed.Tick
}

func (r *recorder) record(t feed.Tick) {
	r.mu.Lock()
	r.ticks = append(r.ticks, t)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func (r *recorder) all() []feed.Tick {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]feed.Tick(nil), r.ticks...)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLive_StartFetchesImmediatelyThenPeriodically(t *testing.T) {
	f := &fakeFetcher{}
	live := feed.New(f, newLogger())
	rec := &recorder{}
	live.Subscribe(rec.record)

	require.NoError(t, live.Start(context.Background(), eurIdr, time.Hour))
	defer live.Stop()

	assert.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, 5*time.Millisecond,
		"first fetch must not wait for the interval")

	live.Stop()
	require.NoError(t, live.Start(context.Background(), eurIdr, 10*time.Millisecond))
	assert.Eventually(t, func() bool { return rec.len() >= 4 }, time.Second, 5*time.Millisecond)
	assert.True(t, live.Running())
	assert.Equal(t, eurIdr, live.Pair())
	assert.Equal(t, 10*time.Millisecond, live.Interval())
}

func TestLive_StopDeliversNothingAfterReturn(t *testing.T) {
	release := make(chan struct{})
	f := &fakeFetcher{}
	f.fn = func(ctx context.Context, pair currency.Pair, n int64) (rate.Point, error) {
		if n > 1 {
			<-release
		}
		return rate.Point{Time: time.Unix(n, 0), Value: float64(n), Source: pair.Source, Target: pair.Target}, nil
	}
	live := feed.New(f, newLogger())
	rec := &recorder{}
	live.Subscribe(rec.record)

	require.NoError(t, live.Start(context.Background(), eurIdr, 5*time.Millisecond))
	require.Eventually(t, func() bool { return f.calls.Load() >= 3 }, time.Second, time.Millisecond)

	live.Stop()
	delivered := rec.len()
	close(release)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, delivered, rec.len(), "in-flight fetches must not deliver after Stop")
	assert.False(t, live.Running())

	calls := f.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, f.calls.Load(), "timer must be cancelled")
}

func TestLive_FailedFetchKeepsLastValueAndKeepsPolling(t *testing.T) {
	f := &fakeFetcher{}
	f.fn = func(ctx context.Context, pair currency.Pair, n int64) (rate.Point, error) {
		if n == 2 || n == 3 {
			return rate.Point{}, errors.New("upstream 503")
		}
		return rate.Point{Time: time.Unix(n, 0), Value: float64(n), Source: pair.Source, Target: pair.Target}, nil
	}
	live := feed.New(f, newLogger())

	var failures atomic.Int64
	live.OnError(func(pair currency.Pair, err error) {
		assert.Equal(t, eurIdr, pair)
		failures.Add(1)
	})
	rec := &recorder{}
	live.Subscribe(rec.record)

	require.NoError(t, live.Start(context.Background(), eurIdr, 10*time.Millisecond))
	defer live.Stop()

	require.Eventually(t, func() bool { return rec.len() >= 2 }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, failures.Load(), int64(2))

	last, ok := live.Last()
	require.True(t, ok)
	assert.GreaterOrEqual(t, last.Value, 4.0)
}

func TestLive_RestartWithNewPairDropsPreviousCycle(t *testing.T) {
	release := make(chan struct{})
	f := &fakeFetcher{}
	f.fn = func(ctx context.Context, pair currency.Pair, n int64) (rate.Point, error) {
		if pair == eurIdr {
			<-release
		}
		return rate.Point{Time: time.Unix(n, 0), Value: float64(n), Source: pair.Source, Target: pair.Target}, nil
	}
	live := feed.New(f, newLogger())
	rec := &recorder{}
	live.Subscribe(rec.record)

	require.NoError(t, live.Start(context.Background(), eurIdr, time.Hour))
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, live.Start(context.Background(), usdIdr, time.Hour))
	defer live.Stop()
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, time.Millisecond)

	close(release)
	time.Sleep(30 * time.Millisecond)

	for _, tick := range rec.all() {
		assert.Equal(t, usdIdr, tick.Requested)
		assert.Equal(t, usdIdr, tick.Point.Pair())
	}
}

func TestLive_FetchOnce(t *testing.T) {
	f := &fakeFetcher{}
	live := feed.New(f, newLogger())
	rec := &recorder{}
	live.Subscribe(rec.record)

	_, err := live.FetchOnce(context.Background())
	assert.ErrorIs(t, err, feed.ErrNotStarted)

	require.NoError(t, live.Start(context.Background(), eurIdr, time.Hour))
	defer live.Stop()
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, time.Millisecond)

	p, err := live.FetchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, eurIdr, p.Pair())
	assert.Equal(t, 2, rec.len())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(2), f.calls.Load(), "manual fetch must not add periodic fetches")
}

func TestLive_UnsubscribeAndInvalidInterval(t *testing.T) {
	live := feed.New(&fakeFetcher{}, newLogger())
	rec := &recorder{}
	unsubscribe := live.Subscribe(rec.record)
	unsubscribe()

	assert.ErrorIs(t, live.Start(context.Background(), eurIdr, 0), feed.ErrInvalidInterval)

	require.NoError(t, live.Start(context.Background(), eurIdr, time.Hour))
	_, err := live.FetchOnce(context.Background())
	require.NoError(t, err)
	live.Stop()
	live.Stop()

	assert.Zero(t, rec.len())
}
