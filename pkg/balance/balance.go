// Package balance folds multi-currency wallet balances into a single total
// expressed in a reporting currency.
package balance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/shopspring/decimal"
)

// Wallet holds the balance of one currency inside an account.
type Wallet struct {
	Currency currency.Code `json:"currency"`
	Balance  float64       `json:"balance"`
}

// Account is a read-only view of a bank account and its wallets.
type Account struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Wallets []Wallet  `json:"wallets"`
}

// Aggregate sums balance*rate over every wallet of every account. A
// currency missing from rates counts with a rate of 1.
func Aggregate(accounts []Account, rates map[currency.Code]float64) float64 {
	total := decimal.Zero
	for _, acc := range accounts {
		for _, w := range acc.Wallets {
			r, ok := rates[w.Currency]
			if !ok {
				r = 1
			}
			total = total.Add(decimal.NewFromFloat(w.Balance).Mul(decimal.NewFromFloat(r)))
		}
	}
	f, _ := total.Float64()
	return f
}

// Currencies returns the distinct wallet currencies in first-seen order.
func Currencies(accounts []Account) []currency.Code {
	seen := make(map[currency.Code]struct{})
	var out []currency.Code
	for _, acc := range accounts {
		for _, w := range acc.Wallets {
			if _, ok := seen[w.Currency]; ok {
				continue
			}
			seen[w.Currency] = struct{}{}
			out = append(out, w.Currency)
		}
	}
	return out
}

// RateSource supplies one-unit conversion rates into the reporting currency.
type RateSource interface {
	GetRates(ctx context.Context, currencies []currency.Code) map[currency.Code]float64
	Reporting() currency.Code
	RefreshedAt() time.Time
}

// Total is an aggregated balance.
type Total struct {
	Amount    float64                   `json:"amount"`
	Currency  currency.Code             `json:"currency"`
	Rates     map[currency.Code]float64 `json:"rates"`
	RatesAsOf time.Time                 `json:"rates_as_of"`
}

// Aggregator computes totals using a shared rate source.
type Aggregator struct {
	rates RateSource
}

// NewAggregator creates an Aggregator reading from rates.
func NewAggregator(rates RateSource) *Aggregator {
	return &Aggregator{rates: rates}
}

// Total converts every wallet of accounts into the reporting currency.
func (a *Aggregator) Total(ctx context.Context, accounts []Account) Total {
	rates := a.rates.GetRates(ctx, Currencies(accounts))
	return Total{
		Amount:    Aggregate(accounts, rates),
		Currency:  a.rates.Reporting(),
		Rates:     rates,
		RatesAsOf: a.rates.RefreshedAt(),
	}
}
