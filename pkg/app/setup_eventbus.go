package app

import (
	"context"
	"fmt"

	"github.com/rezkym/fx-exchange/pkg/domain/events"
	"github.com/rezkym/fx-exchange/pkg/notice"
)

// setupEventBus registers the application's event handlers.
func (a *App) setupEventBus() {
	bus := a.Deps.EventBus
	logger := a.Deps.Logger

	a.Notices.Subscribe(bus)

	bus.Register(events.EventTypeConversionRefreshed, func(ctx context.Context, e events.Event) error {
		if r, ok := e.(*events.ConversionRefreshed); ok && r.Fallbacks > 0 {
			logger.Warn("Conversion refresh used fallback rates",
				"reporting", string(r.Reporting),
				"currencies", r.Currencies,
				"fallbacks", r.Fallbacks)
			a.Notices.Add(notice.LevelWarning, fmt.Sprintf(
				"Total in %s is approximate: %d of %d currencies were counted at a rate of 1",
				r.Reporting, r.Fallbacks, r.Currencies))
		}
		return nil
	})
}
