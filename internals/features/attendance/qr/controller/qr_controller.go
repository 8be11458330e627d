package controller

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"presensiku_backend/internals/configs"
	"presensiku_backend/internals/features/attendance/qr/dto"
	"presensiku_backend/internals/features/attendance/qr/service"
	helper "presensiku_backend/internals/helpers"
)

var validate = validator.New()

type QRAttendanceController struct {
	Service *service.QRService
}

func NewQRAttendanceController(svc *service.QRService) *QRAttendanceController {
	return &QRAttendanceController{Service: svc}
}

// 🎯 GET /api/a/qr/generate?subject_id=...
// Teacher menerbitkan QR token pendek-umur untuk subject yang DIA ajar.
func (ctrl *QRAttendanceController) GenerateQR(c *fiber.Ctx) error {
	teacherID, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return err
	}

	subjectID, err := helper.ParseUUIDQuery(c, "subject_id")
	if err != nil {
		return err
	}

	// UserContext membawa deadline request yang diset di main.
	token, err := ctrl.Service.GenerateQR(c.UserContext(), subjectID, teacherID)
	if err != nil {
		return err
	}

	return helper.Success(c, "QR token berhasil dibuat", dto.QRGenerateResponse{
		QRToken:          token,
		ExpiresInSeconds: int(configs.QRTokenTTL.Seconds()),
	})
}

// 🎯 POST /api/u/attendance/qr-mark
// Student submit hasil scan: validasi penuh + persist dalam satu operasi.
func (ctrl *QRAttendanceController) MarkAttendance(c *fiber.Ctx) error {
	var req dto.MarkQRAttendanceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	callerID, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return err
	}
	// Student hanya boleh absen atas nama dirinya sendiri.
	if req.StudentID != callerID {
		return fiber.NewError(fiber.StatusForbidden, "Cannot mark attendance for another student")
	}

	var loc *service.Location
	if req.Location != nil {
		loc = &service.Location{Lat: req.Location.Lat, Lon: req.Location.Lon}
	}

	rec, err := ctrl.Service.ValidateAndMark(c.UserContext(), req.QRToken, req.StudentID, loc)
	if err != nil {
		return err
	}

	return helper.SuccessWithCode(c, fiber.StatusCreated, "Attendance marked successfully", dto.NewQRMarkResponse(rec))
}
