package routes

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	routeDetails "presensiku_backend/internals/route/details"

	"presensiku_backend/internals/features/attendance/nonce"
	"presensiku_backend/internals/features/attendance/qrtoken"
	"presensiku_backend/internals/features/attendance/realtime"
	"presensiku_backend/internals/observability"
)

var startTime time.Time

// Deps: semua dependency yang dirakit di main dan dibutuhkan route.
type Deps struct {
	DB      *gorm.DB
	Tokens  *qrtoken.Manager
	Nonces  nonce.Store
	Hub     *realtime.Hub
	Flusher *realtime.Flusher
}

func SetupRoutes(app *fiber.App, d Deps) {
	startTime = time.Now()

	log.Println("[INFO] Setting up AttendanceRoutes...")
	routeDetails.AttendanceRoutes(app, d.DB, d.Tokens, d.Nonces)

	log.Println("[INFO] Setting up LiveAttendanceRoutes...")
	routeDetails.LiveAttendanceRoutes(app, d.Hub)

	// ===================== OPS =====================
	app.Get("/metrics", observability.MetricsHandler())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"uptime": time.Since(startTime).String(),
		})
	})
}
