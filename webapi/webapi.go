// Package webapi provides the HTTP API of the FX dashboard.
// It is organized into sub-packages per page:
// - rates: watched pairs and their rate views
// - accounts: aggregated wallet balance
// - notices: recent non-blocking notices
package webapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rezkym/fx-exchange/pkg/app"
	accountsweb "github.com/rezkym/fx-exchange/webapi/accounts"
	"github.com/rezkym/fx-exchange/webapi/common"
	noticesweb "github.com/rezkym/fx-exchange/webapi/notices"
	ratesweb "github.com/rezkym/fx-exchange/webapi/rates"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(app *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	// Uses X-Forwarded-For header when behind a proxy
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        app.Config.RateLimit.MaxRequests,
		Expiration: app.Config.RateLimit.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
				first, _, _ := strings.Cut(forwardedFor, ",")
				return strings.TrimSpace(first)
			}
			if realIP := c.Get("X-Real-IP"); realIP != "" {
				return realIP
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return common.ProblemDetailsJSON(
				c,
				"Too Many Requests",
				errors.New("rate limit exceeded"),
				fiber.StatusTooManyRequests,
			)
		},
	}))
	fiberApp.Use(recover.New())
	if !app.Config.IsProduction() {
		fiberApp.Use(logger.New())
	}

	// Health check endpoint
	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("FX dashboard API is running!")
	})

	ratesweb.Routes(fiberApp, app.Board)
	accountsweb.Routes(fiberApp, app.Balances)
	noticesweb.Routes(fiberApp, app.Notices)
	return fiberApp
}
