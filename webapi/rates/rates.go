// Package rates exposes the rate page controllers over HTTP.
package rates

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rezkym/fx-exchange/pkg/dashboard"
	"github.com/rezkym/fx-exchange/webapi/common"
)

// Routes registers HTTP routes for watched currency pairs.
func Routes(app *fiber.App, board *dashboard.Board) {
	group := app.Group("/api/rates")

	group.Get("/", ListPairs(board))
	group.Get("/:source/:target", GetView(board))
	group.Post("/:source/:target/refresh", Refresh(board))
	group.Put("/:source/:target/window", SetWindow(board))
	group.Delete("/:source/:target", Unwatch(board))
}

// ListPairs returns the pairs currently watched.
// @Summary List watched pairs
// @Tags rates
// @Produce json
// @Success 200 {object} common.Response
// @Router /api/rates [get]
func ListPairs(board *dashboard.Board) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Watched pairs fetched successfully",
			toPairsResponse(board.Pairs()))
	}
}

// GetView starts watching the pair if needed and returns its rate view.
// @Summary Get the rate view of a pair
// @Tags rates
// @Produce json
// @Param source path string true "Source currency (e.g., EUR)"
// @Param target path string true "Target currency (e.g., IDR)"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 503 {object} common.ProblemDetails
// @Router /api/rates/{source}/{target} [get]
func GetView(board *dashboard.Board) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pair, err := common.PairParams(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid currency pair", err)
		}
		w, err := board.Watch(c.UserContext(), pair)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to watch pair", err)
		}
		view, err := w.View()
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to build rate view", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Rate view fetched successfully", view)
	}
}

// Refresh reloads history and the live rate of a watched pair.
// @Summary Refresh a watched pair
// @Tags rates
// @Produce json
// @Param source path string true "Source currency"
// @Param target path string true "Target currency"
// @Success 200 {object} common.Response
// @Failure 404 {object} common.ProblemDetails
// @Failure 502 {object} common.ProblemDetails
// @Router /api/rates/{source}/{target}/refresh [post]
func Refresh(board *dashboard.Board) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pair, err := common.PairParams(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid currency pair", err)
		}
		w, err := board.Get(pair)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Pair is not watched", err)
		}
		if err := w.Refresh(c.UserContext()); err != nil {
			return common.ProblemDetailsJSON(c, "Refresh failed", err)
		}
		view, err := w.View()
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to build rate view", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Rate view refreshed", view)
	}
}

// SetWindow changes the history window of a watched pair.
// @Summary Change the history window
// @Tags rates
// @Accept json
// @Produce json
// @Param source path string true "Source currency"
// @Param target path string true "Target currency"
// @Param request body WindowRequest true "History window"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Router /api/rates/{source}/{target}/window [put]
func SetWindow(board *dashboard.Board) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pair, err := common.PairParams(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid currency pair", err)
		}
		input, err := common.BindAndValidate[WindowRequest](c)
		if input == nil {
			return err // error response already written
		}
		w, err := board.Get(pair)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Pair is not watched", err)
		}
		if err := w.SetWindow(c.UserContext(), input.ToWindow()); err != nil {
			return common.ProblemDetailsJSON(c, "Failed to change window", err)
		}
		view, err := w.View()
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to build rate view", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "History window updated", view)
	}
}

// Unwatch stops watching a pair.
// @Summary Stop watching a pair
// @Tags rates
// @Param source path string true "Source currency"
// @Param target path string true "Target currency"
// @Success 200 {object} common.Response
// @Failure 404 {object} common.ProblemDetails
// @Router /api/rates/{source}/{target} [delete]
func Unwatch(board *dashboard.Board) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pair, err := common.PairParams(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid currency pair", err)
		}
		if err := board.Unwatch(pair); err != nil {
			return common.ProblemDetailsJSON(c, "Pair is not watched", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Stopped watching "+pair.String(), nil)
	}
}
