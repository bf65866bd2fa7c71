package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/rezkym/fx-exchange/pkg/app"
	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/domain/events"
)

func dispatch(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	switch args[0] {
	case "rate":
		pair, err := pairArgs(args, 3)
		if err != nil {
			return err
		}
		return rateCmd(ctx, a, pair, out)
	case "watch":
		pair, err := pairArgs(args, 3)
		if err != nil {
			return err
		}
		return watchCmd(ctx, a, pair, out)
	case "convert":
		pair, err := pairArgs(args, 4)
		if err != nil {
			return err
		}
		amount, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("%w: amount %q: %w", errUsage, args[3], err)
		}
		return convertCmd(ctx, a, pair, amount, out)
	case "total":
		return totalCmd(ctx, a, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func rateCmd(ctx context.Context, a *app.App, pair currency.Pair, out io.Writer) error {
	w, err := a.Board.Watch(ctx, pair)
	if err != nil {
		return err
	}
	if err := w.Refresh(ctx); err != nil {
		warn.Fprintf(out, "warning: %v\n", err) //nolint: errcheck
	}
	view, err := w.View()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s  %s\n", bold.Sprint(pair.String()), formatRate(view.Current))
	fmt.Fprintf(out, "  change   %s\n", formatChange(view.CurrentChange))
	fmt.Fprintf(out, "  %d%-6s %s\n", view.Window.Length, view.Window.Unit, formatChange(view.WindowChange))
	fmt.Fprintf(out, "  points   %d\n", len(view.Series))
	return nil
}

func watchCmd(ctx context.Context, a *app.App, pair currency.Pair, out io.Writer) error {
	fmt.Fprintf(out, "Watching %s, press Ctrl+C to stop\n", bold.Sprint(pair.String()))
	a.Deps.EventBus.Register(events.EventTypeRateTickApplied, func(_ context.Context, e events.Event) error {
		tick, ok := e.(*events.RateTickApplied)
		if !ok || tick.Pair != pair {
			return nil
		}
		w, err := a.Board.Get(pair)
		if err != nil {
			return err
		}
		view, err := w.View()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s  %s  %s  %s\n",
			tick.Time.Format("15:04:05"),
			pair.String(),
			formatRate(tick.Value),
			formatChange(view.CurrentChange))
		return nil
	})
	if _, err := a.Board.Watch(ctx, pair); err != nil {
		return err
	}
	<-ctx.Done()
	// No tick reaches out once the watcher is stopped.
	return a.Board.Unwatch(pair)
}

func convertCmd(ctx context.Context, a *app.App, pair currency.Pair, amount float64, out io.Writer) error {
	conv, err := a.Deps.RateAPI.Convert(ctx, pair.Source, pair.Target, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s = %s %s (rate %s)\n",
		formatRate(amount), pair.Source,
		bold.Sprint(formatRate(conv.Converted)), pair.Target,
		formatRate(conv.Rate))
	return nil
}

func totalCmd(ctx context.Context, a *app.App, out io.Writer) error {
	total, err := a.Balances.Total(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Total  %s %s\n", bold.Sprint(formatRate(total.Amount)), total.Currency)

	codes := make([]string, 0, len(total.Rates))
	for c := range total.Rates {
		codes = append(codes, string(c))
	}
	sort.Strings(codes)
	for _, c := range codes {
		fmt.Fprintf(out, "  1 %s = %s %s\n", c, formatRate(total.Rates[currency.Code(c)]), total.Currency)
	}
	if !total.RatesAsOf.IsZero() {
		fmt.Fprintf(out, "  rates as of %s\n", total.RatesAsOf.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func pairArgs(args []string, want int) (currency.Pair, error) {
	if len(args) < want {
		return currency.Pair{}, fmt.Errorf("%w: %s needs %d arguments", errUsage, args[0], want-1)
	}
	src, err := currency.ParseCode(args[1])
	if err != nil {
		return currency.Pair{}, err
	}
	dst, err := currency.ParseCode(args[2])
	if err != nil {
		return currency.Pair{}, err
	}
	return currency.Pair{Source: src, Target: dst}, nil
}

