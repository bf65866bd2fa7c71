// Package notices exposes the recent non-blocking notices.
package notices

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rezkym/fx-exchange/pkg/notice"
	"github.com/rezkym/fx-exchange/webapi/common"
)

const defaultLimit = 20

// Routes registers HTTP routes for notices.
func Routes(app *fiber.App, center *notice.Center) {
	app.Get("/api/notices", Recent(center))
}

// Recent returns the newest notices first.
// @Summary Recent notices
// @Tags notices
// @Produce json
// @Param limit query int false "Maximum number of notices" default(20)
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Router /api/notices [get]
func Recent(center *notice.Center) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", defaultLimit)
		if limit < 0 {
			return common.ProblemDetailsJSON(c, "Invalid limit", nil,
				"limit must not be negative", fiber.StatusBadRequest)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Notices fetched successfully", center.Recent(limit))
	}
}
