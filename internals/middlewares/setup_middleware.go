package middlewares

import (
	"github.com/gofiber/fiber/v2"

	"presensiku_backend/internals/middlewares/logger"
)

// SetupMiddlewares memasang middleware dasar dengan urutan:
// recovery → CORS → access log → global rate limit.
func SetupMiddlewares(app *fiber.App) {
	app.Use(RecoveryMiddleware())
	app.Use(CorsMiddleware())
	app.Use(logger.LoggerMiddleware())
	app.Use(GlobalRateLimiter())
}
