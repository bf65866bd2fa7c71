package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/rezkym/fx-exchange/infra/initializer"
	"github.com/rezkym/fx-exchange/pkg/app"
	"github.com/rezkym/fx-exchange/pkg/config"
	"github.com/rezkym/fx-exchange/webapi"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	// Initialize all dependencies
	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	logger := deps.Logger

	fiberApp, a, err := newServer(deps, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Server.Addr()
	logger.Info("Starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- fiberApp.Listen(addr) }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = fiberApp.ShutdownWithContext(shutdownCtx)
	}
	return errors.Join(err, shutdown(a, logger))
}

// newServer builds the application controllers and the Fiber app on top.
func newServer(deps *app.Deps, cfg *config.App) (*fiber.App, *app.App, error) {
	a, err := app.New(deps, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create application: %w", err)
	}
	return webapi.SetupApp(a), a, nil
}

func shutdown(a *app.App, logger *slog.Logger) error {
	if err := a.Close(); err != nil {
		logger.Error("Failed to close application", "error", err)
		return err
	}
	return nil
}
