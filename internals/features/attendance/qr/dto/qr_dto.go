package dto

import (
	"github.com/google/uuid"

	"presensiku_backend/internals/features/attendance/qr/model"
)

/* =========================================================
   REQUEST
   ========================================================= */

type LocationDTO struct {
	Lat float64 `json:"lat" validate:"required,latitude"`
	Lon float64 `json:"lon" validate:"required,longitude"`
}

type MarkQRAttendanceRequest struct {
	QRToken   string       `json:"qr_token"   validate:"required"`
	StudentID uuid.UUID    `json:"student_id" validate:"required"`
	Location  *LocationDTO `json:"location"   validate:"omitempty"`
}

/* =========================================================
   RESPONSE
   ========================================================= */

type QRGenerateResponse struct {
	QRToken          string `json:"qr_token"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

type QRMarkResponse struct {
	AttendanceID string `json:"attendance_id"`
	SubjectID    string `json:"subject_id"`
	StudentID    string `json:"student_id"`
	Date         string `json:"date"`
	IsProxy      bool   `json:"is_proxy_suspected"`
	DistanceM    float64 `json:"distance_m"`
}

func NewQRMarkResponse(rec *model.QRAttendanceModel) QRMarkResponse {
	return QRMarkResponse{
		AttendanceID: rec.QRAttendanceID.String(),
		SubjectID:    rec.QRAttendanceSubjectID.String(),
		StudentID:    rec.QRAttendanceStudentID.String(),
		Date:         rec.QRAttendanceDate,
		IsProxy:      rec.QRAttendanceIsProxySuspected,
		DistanceM:    rec.QRAttendanceDistanceM,
	}
}
