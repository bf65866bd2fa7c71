package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rezkym/fx-exchange/infra/initializer"
	"github.com/rezkym/fx-exchange/pkg/app"
	"github.com/rezkym/fx-exchange/pkg/config"
)

const usage = `Usage: cli <command> [arguments]
Commands:
  rate <SRC> <DST>              current rate and changes
  watch <SRC> <DST>             follow live ticks until interrupted
  convert <SRC> <DST> <amount>  convert an amount
  total                         all wallets in the reporting currency`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
		}
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err) //nolint: errcheck
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.Load(config.ToolEnv("ENV_FILE", ".env"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	// Keep the terminal for command output unless asked otherwise.
	if !config.ToolFlag("CLI_VERBOSE") && cfg.Log.Level < int(slog.LevelWarn) {
		cfg.Log.Level = int(slog.LevelWarn)
	}

	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	a, err := app.New(deps, cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint: errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if args[0] != "watch" {
		timeout, err := config.ToolDuration("CLI_TIMEOUT", 15*time.Second)
		if err != nil {
			return err
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return dispatch(ctx, a, args, out)
}
