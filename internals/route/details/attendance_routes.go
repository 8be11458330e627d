package details

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	qrController "presensiku_backend/internals/features/attendance/qr/controller"
	qrRepository "presensiku_backend/internals/features/attendance/qr/repository"
	qrService "presensiku_backend/internals/features/attendance/qr/service"
	subjectRepository "presensiku_backend/internals/features/school/subjects/repository"

	"presensiku_backend/internals/features/attendance/nonce"
	"presensiku_backend/internals/features/attendance/qrtoken"
	"presensiku_backend/internals/features/attendance/realtime"
	"presensiku_backend/internals/middlewares"
	authMiddleware "presensiku_backend/internals/middlewares/auth"
)

/* ===================== QR (single-shot) ===================== */

func AttendanceRoutes(app *fiber.App, db *gorm.DB, tokens *qrtoken.Manager, nonces nonce.Store) {
	subjects := subjectRepository.NewSubjectRepository(db)
	ledger := qrRepository.NewQRAttendanceRepository(db)
	svc := qrService.NewQRService(tokens, nonces, subjects, ledger)
	ctrl := qrController.NewQRAttendanceController(svc)

	// Teacher area: generate QR untuk subject yang dia ajar.
	teacherGroup := app.Group("/api/a",
		authMiddleware.AuthMiddleware(),
		authMiddleware.OnlyTeacher("QR attendance"),
	)
	teacherGroup.Get("/qr/generate",
		middlewares.QRGenerateRateLimiter(),
		ctrl.GenerateQR,
	)

	// Student area: mark attendance via hasil scan.
	studentGroup := app.Group("/api/u",
		authMiddleware.AuthMiddleware(),
		authMiddleware.OnlyStudent("QR attendance"),
	)
	studentGroup.Post("/attendance/qr-mark",
		middlewares.QRMarkRateLimiter(),
		ctrl.MarkAttendance,
	)
}

/* ===================== LIVE (websocket) ===================== */

func LiveAttendanceRoutes(app *fiber.App, hub *realtime.Hub) {
	app.Use("/ws/attendance", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/attendance", websocket.New(hub.Handler))
}
