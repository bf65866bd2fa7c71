package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rezkym/fx-exchange/pkg/balance"
	"github.com/rezkym/fx-exchange/pkg/provider"
)

// AccountsView totals the user's wallets in the reporting currency of its
// rate source. The rate source is shared by every total it computes.
type AccountsView struct {
	accounts   provider.AccountLister
	aggregator *balance.Aggregator
	logger     *slog.Logger
}

// NewAccountsView wires accounts to rates.
func NewAccountsView(accounts provider.AccountLister, rates balance.RateSource, logger *slog.Logger) *AccountsView {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountsView{
		accounts:   accounts,
		aggregator: balance.NewAggregator(rates),
		logger:     logger.With("component", "accounts_view"),
	}
}

// Total lists the accounts and folds their wallets into one amount. Only a
// failure to list accounts is returned; missing rates count as 1.
func (v *AccountsView) Total(ctx context.Context) (balance.Total, error) {
	accounts, err := v.accounts.ListAccounts(ctx)
	if err != nil {
		return balance.Total{}, fmt.Errorf("list accounts: %w", err)
	}
	total := v.aggregator.Total(ctx, accounts)
	v.logger.Debug("Balance total computed",
		"accounts", len(accounts),
		"amount", total.Amount,
		"currency", string(total.Currency))
	return total, nil
}
