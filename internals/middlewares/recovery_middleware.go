package middlewares

import (
	"log"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// RecoveryMiddleware menangkap panic handler jadi 500.
// Proses tidak boleh mati: buffer sesi live ikut hilang kalau crash.
func RecoveryMiddleware() fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.Printf("[PANIC] %s %s: %v\n%s", c.Method(), c.Path(), e, debug.Stack())
		},
	})
}
