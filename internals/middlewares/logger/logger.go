package logger

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// LoggerMiddleware mencatat access log dengan request id (diisi
// middleware request-id di main) supaya bisa dikorelasikan dengan log
// pipeline absensi.
func LoggerMiddleware() fiber.Handler {
	return logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Asia/Jakarta",
		Format:     "[${time}] ${locals:reqid} ${ip} - ${method} ${path} - ${status} - ${latency}\n",
	})
}
