package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/rezkym/fx-exchange/pkg/config"
	"github.com/rezkym/fx-exchange/pkg/conversion"
	"github.com/rezkym/fx-exchange/pkg/dashboard"
	"github.com/rezkym/fx-exchange/pkg/eventbus"
	"github.com/rezkym/fx-exchange/pkg/notice"
	"github.com/rezkym/fx-exchange/pkg/provider"
)

// Deps contains the infrastructure the application is built from.
type Deps struct {
	RateAPI  provider.RateAPI
	Accounts provider.AccountLister
	EventBus eventbus.Bus
	Logger   *slog.Logger
}

// App holds the long-lived controllers shared by the HTTP API and the CLI.
type App struct {
	Deps   *Deps
	Config *config.App

	Board    *dashboard.Board
	Rates    *conversion.Cache
	Balances *dashboard.AccountsView
	Notices  *notice.Center
}

// New builds the controllers from deps and cfg and subscribes the notice
// center to the event bus.
func New(deps *Deps, cfg *config.App) (*App, error) {
	if deps.EventBus == nil {
		deps.EventBus = eventbus.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	reporting, err := cfg.Conversion.Reporting()
	if err != nil {
		return nil, fmt.Errorf("reporting currency: %w", err)
	}

	a := &App{Deps: deps, Config: cfg}
	a.Board = dashboard.NewBoard(deps.RateAPI, deps.EventBus, deps.Logger, dashboard.Config{
		PollInterval:    cfg.Live.PollInterval,
		HistoryInterval: cfg.Live.HistoryInterval,
		Window:          cfg.Live.Window(),
	})
	a.Rates = conversion.New(deps.RateAPI, reporting, deps.Logger,
		conversion.WithTTL(cfg.Conversion.TTL),
		conversion.WithConcurrency(cfg.Conversion.Concurrency),
		conversion.WithBus(deps.EventBus),
	)
	a.Balances = dashboard.NewAccountsView(deps.Accounts, a.Rates, deps.Logger)
	a.Notices = notice.NewCenter(cfg.Notice.Capacity, deps.Logger)

	a.setupEventBus()
	return a, nil
}

// Close stops every watcher and releases the event bus.
func (a *App) Close() error {
	a.Board.Close()
	if c, ok := a.Deps.EventBus.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close event bus: %w", err)
		}
	}
	return nil
}
