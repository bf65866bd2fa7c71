package dashboard

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/eventbus"
)

type boardEntry struct {
	watcher *Watcher
	ready   chan struct{}
	err     error
}

// Board owns one Watcher per watched pair. Each pair gets its own watcher,
// so stores and feeds are never shared between pairs.
type Board struct {
	api    RateSource
	bus    eventbus.Bus
	logger *slog.Logger
	cfg    Config

	mu      sync.Mutex
	entries map[currency.Pair]*boardEntry
	closed  bool
}

// NewBoard creates an empty board. Watchers it creates share api, bus and
// cfg.
func NewBoard(api RateSource, bus eventbus.Bus, logger *slog.Logger, cfg Config) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		api:     api,
		bus:     bus,
		logger:  logger,
		cfg:     cfg,
		entries: make(map[currency.Pair]*boardEntry),
	}
}

// Watch returns the watcher for pair, creating and starting it on first use.
// Concurrent calls for the same pair share one watcher.
func (b *Board) Watch(ctx context.Context, pair currency.Pair) (*Watcher, error) {
	if err := validatePair(pair); err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBoardClosed
	}
	if e, ok := b.entries[pair]; ok {
		b.mu.Unlock()
		<-e.ready
		return e.watcher, e.err
	}
	e := &boardEntry{
		watcher: NewWatcher(b.api, b.bus, b.logger, b.cfg),
		ready:   make(chan struct{}),
	}
	b.entries[pair] = e
	b.mu.Unlock()

	e.err = e.watcher.Select(ctx, pair)
	if e.err != nil {
		e.watcher.Stop()
		b.mu.Lock()
		delete(b.entries, pair)
		b.mu.Unlock()
	}
	close(e.ready)
	return e.watcher, e.err
}

// Get returns the watcher for pair if it is being watched.
func (b *Board) Get(pair currency.Pair) (*Watcher, error) {
	b.mu.Lock()
	e, ok := b.entries[pair]
	b.mu.Unlock()
	if !ok {
		return nil, ErrNotWatching
	}
	<-e.ready
	if e.err != nil {
		return nil, e.err
	}
	return e.watcher, nil
}

// Unwatch stops and forgets the watcher for pair.
func (b *Board) Unwatch(pair currency.Pair) error {
	b.mu.Lock()
	e, ok := b.entries[pair]
	if ok {
		delete(b.entries, pair)
	}
	b.mu.Unlock()
	if !ok {
		return ErrNotWatching
	}
	<-e.ready
	e.watcher.Stop()
	return nil
}

// Pairs lists the watched pairs in a stable order.
func (b *Board) Pairs() []currency.Pair {
	b.mu.Lock()
	out := make([]currency.Pair, 0, len(b.entries))
	for p := range b.entries {
		out = append(out, p)
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Close stops every watcher. The board rejects new watches afterwards.
func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	entries := b.entries
	b.entries = make(map[currency.Pair]*boardEntry)
	b.mu.Unlock()

	for _, e := range entries {
		<-e.ready
		e.watcher.Stop()
	}
	b.logger.Info("Board closed", "watchers", len(entries))
}
