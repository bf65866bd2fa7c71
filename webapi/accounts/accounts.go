// Package accounts exposes the aggregated wallet balance.
package accounts

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rezkym/fx-exchange/pkg/dashboard"
	"github.com/rezkym/fx-exchange/webapi/common"
)

// Routes registers HTTP routes for account balances.
func Routes(app *fiber.App, view *dashboard.AccountsView) {
	app.Get("/api/balances/total", Total(view))
}

// Total returns every wallet folded into the reporting currency.
// @Summary Aggregated balance
// @Description Sum of all wallets converted to the reporting currency
// @Tags balances
// @Produce json
// @Success 200 {object} common.Response
// @Failure 502 {object} common.ProblemDetails
// @Router /api/balances/total [get]
func Total(view *dashboard.AccountsView) fiber.Handler {
	return func(c *fiber.Ctx) error {
		total, err := view.Total(c.UserContext())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to compute balance", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Balance total computed", total)
	}
}
