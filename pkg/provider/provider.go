// Package provider declares the upstream rate API the dashboard consumes.
package provider

import (
	"context"
	"errors"

	"github.com/rezkym/fx-exchange/pkg/balance"
	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/rate"
)

// Common errors for provider operations
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrMalformedResponse   = errors.New("malformed provider response")
)

// HistoryWindow selects how much history to load and at which granularity,
// e.g. 24 "hour" at resolution "minute".
type HistoryWindow struct {
	Length     int    `json:"length" validate:"required,min=1,max=1000"`
	Unit       string `json:"unit" validate:"required,oneof=minute hour day week month"`
	Resolution string `json:"resolution" validate:"required,oneof=minute hour day"`
}

// DefaultWindow is the 24 hour view shown when a pair is first opened.
var DefaultWindow = HistoryWindow{Length: 24, Unit: "hour", Resolution: "minute"}

// Conversion is the result of converting an amount between two currencies.
type Conversion struct {
	Converted float64 `json:"converted"`
	Rate      float64 `json:"rate"`
}

// LiveRateFetcher fetches the current rate of a pair.
type LiveRateFetcher interface {
	GetLive(ctx context.Context, pair currency.Pair) (rate.Point, error)
}

// HistoryFetcher fetches a time-ordered rate history for a pair.
type HistoryFetcher interface {
	GetHistory(ctx context.Context, pair currency.Pair, window HistoryWindow) ([]rate.Point, error)
}

// Converter converts an amount from one currency to another.
type Converter interface {
	Convert(ctx context.Context, from, to currency.Code, amount float64) (Conversion, error)
}

// AccountLister lists the user's accounts with their wallets.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]balance.Account, error)
}

// RateAPI is the full set of rate operations.
type RateAPI interface {
	LiveRateFetcher
	HistoryFetcher
	Converter
}
