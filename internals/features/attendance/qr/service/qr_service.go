package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"presensiku_backend/internals/configs"
	"presensiku_backend/internals/features/attendance/geofence"
	"presensiku_backend/internals/features/attendance/nonce"
	"presensiku_backend/internals/features/attendance/qr/model"
	"presensiku_backend/internals/features/attendance/qrtoken"
	subjectModel "presensiku_backend/internals/features/school/subjects/model"
	"presensiku_backend/internals/observability"
)

// SubjectGateway: collaborator course/subject (existence + ownership).
type SubjectGateway interface {
	FindByID(ctx context.Context, id uuid.UUID) (*subjectModel.SubjectModel, error)
	IsOwnedBy(ctx context.Context, subjectID, teacherID uuid.UUID) (bool, error)
}

// Ledger: penyimpanan absensi durable. Insert WAJIB meneruskan
// gorm.ErrDuplicatedKey apa adanya - itu backstop race antar token.
type Ledger interface {
	HasForDate(ctx context.Context, studentID, subjectID uuid.UUID, date string) (bool, error)
	Insert(ctx context.Context, rec *model.QRAttendanceModel, logEntry *model.AttendanceLogModel) error
}

type Location struct {
	Lat float64
	Lon float64
}

// QRService: orchestrator jalur single-shot "scan and submit".
type QRService struct {
	Tokens   *qrtoken.Manager
	Nonces   nonce.Store
	Subjects SubjectGateway
	Ledger   Ledger

	now func() time.Time
}

func NewQRService(tokens *qrtoken.Manager, nonces nonce.Store, subjects SubjectGateway, ledger Ledger) *QRService {
	return &QRService{
		Tokens:   tokens,
		Nonces:   nonces,
		Subjects: subjects,
		Ledger:   ledger,
		now:      time.Now,
	}
}

/* ===================== GENERATE (teacher) ===================== */

// GenerateQR menerbitkan token untuk subject yang DIAJAR requester.
// Token auth teacher yang dicuri tidak boleh bisa bikin QR untuk
// course orang lain. Tidak ada side effect - nonce baru tercatat saat
// token di-redeem.
func (s *QRService) GenerateQR(ctx context.Context, subjectID, teacherID uuid.UUID) (string, error) {
	if _, err := s.Subjects.FindByID(ctx, subjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fiber.NewError(fiber.StatusNotFound, "Course not found")
		}
		return "", fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	owned, err := s.Subjects.IsOwnedBy(ctx, subjectID, teacherID)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if !owned {
		return "", fiber.NewError(fiber.StatusForbidden, "You are not the teacher of this course")
	}

	tok, err := s.Tokens.Issue(subjectID)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	observability.QRTokensIssued.Inc()
	log.Printf("[INFO] QR token issued - subject=%s teacher=%s", subjectID, teacherID)
	return tok, nil
}

/* ===================== VALIDATE & MARK (student) ===================== */

// ValidateAndMark menjalankan pipeline validasi dengan urutan tetap,
// check termurah/paling menentukan duluan:
//
//  1. decode + verify token (signature, struktur, exp)
//  2. freshness eksplisit dari timestamp ms (sudah di dalam Validate)
//  3. duplicate check hari ini - SEBELUM konsumsi nonce, supaya
//     resubmit record yang sudah diproses tidak membakar token valid
//  4. konsumsi nonce (atomik - satu-satunya penentu antar submit
//     konkuren dengan token yang SAMA)
//  5. resolve subject (token bisa outlive course-nya)
//  6. persist + audit; unique index (student,subject,date) jadi
//     backstop race antar token BERBEDA
func (s *QRService) ValidateAndMark(ctx context.Context, tokenString string, studentID uuid.UUID, loc *Location) (*model.QRAttendanceModel, error) {
	// Step 1+2: signature, struktur, expiry dua lapis, umur negatif.
	claims, err := s.Tokens.Validate(tokenString)
	if err != nil {
		switch {
		case errors.Is(err, qrtoken.ErrExpired):
			observability.QRTokenRejected.WithLabelValues("expired").Inc()
			return nil, fiber.NewError(fiber.StatusUnauthorized, "QR code has expired")
		case errors.Is(err, qrtoken.ErrClockSkew):
			observability.QRTokenRejected.WithLabelValues("clock_skew").Inc()
			return nil, fiber.NewError(fiber.StatusUnauthorized, "QR token timestamp is in the future - possible tampering")
		default:
			observability.QRTokenRejected.WithLabelValues("invalid").Inc()
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid QR token")
		}
	}

	subjectID, err := uuid.Parse(claims.SubjectID)
	if err != nil {
		observability.QRTokenRejected.WithLabelValues("invalid").Inc()
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid course_id in QR token")
	}

	today := s.now().UTC().Format("2006-01-02")

	// Step 3: duplicate guard - sebelum nonce supaya token valid tidak
	// terbakar sia-sia saat student iseng submit dua kali.
	exists, err := s.Ledger.HasForDate(ctx, studentID, subjectID, today)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if exists {
		return nil, fiber.NewError(fiber.StatusConflict, "Attendance already marked for this course today")
	}

	// Step 4: replay guard. Dua submit konkuren token yang sama bisa
	// sama-sama lolos step 3; hanya satu yang menang di sini.
	fresh, err := s.Nonces.Consume(ctx, claims.Nonce)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if !fresh {
		observability.ReplayBlocked.Inc()
		return nil, fiber.NewError(fiber.StatusConflict, "QR code has already been used (replay detected)")
	}

	// Step 5: subject bisa hilang di race admin-delete patologis.
	subject, err := s.Subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "Course referenced in QR token does not exist")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	// Geofence tri-state: tanpa lokasi referensi TIDAK dievaluasi
	// terhadap (0,0) - outcome NotConfigured, tidak pernah proxy.
	outcome := geofence.Outcome{Status: geofence.StatusNotConfigured}
	if loc != nil && subject.HasLocation() {
		radius := configs.GeofenceDefaultRadius
		if subject.SubjectLocationRadiusM != nil {
			radius = *subject.SubjectLocationRadiusM
		}
		outcome = geofence.Check(&geofence.Reference{
			Lat:     *subject.SubjectLocationLat,
			Lon:     *subject.SubjectLocationLon,
			RadiusM: radius,
		}, loc.Lat, loc.Lon)
	}

	// Step 6: persist dengan audit fields lengkap.
	markedAt := s.now().UTC()
	nonceCopy := claims.Nonce
	rec := &model.QRAttendanceModel{
		QRAttendanceStudentID:        studentID,
		QRAttendanceSubjectID:        subjectID,
		QRAttendanceDate:             today,
		QRAttendanceMarkedAt:         markedAt,
		QRAttendanceMethod:           model.MethodQR,
		QRAttendanceNonce:            &nonceCopy,
		QRAttendanceDistanceM:        outcome.DistanceM,
		QRAttendanceIsProxySuspected: outcome.IsProxySuspected(),
	}

	var locJSON datatypes.JSON
	if loc != nil {
		rec.QRAttendanceLat = &loc.Lat
		rec.QRAttendanceLon = &loc.Lon
		if b, mErr := json.Marshal(fiber.Map{"lat": loc.Lat, "lon": loc.Lon}); mErr == nil {
			locJSON = datatypes.JSON(b)
		}
	}

	logEntry := &model.AttendanceLogModel{
		AttendanceLogDate:             today,
		AttendanceLogTimestamp:        markedAt.Format(time.RFC3339),
		AttendanceLogLocation:         locJSON,
		AttendanceLogDistanceM:        outcome.DistanceM,
		AttendanceLogIsProxySuspected: outcome.IsProxySuspected(),
		AttendanceLogMethod:           model.MethodQR,
	}

	if err := s.Ledger.Insert(ctx, rec, logEntry); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Race dua token independen: storage yang memutus.
			return nil, fiber.NewError(fiber.StatusConflict, "Attendance already marked for this course today")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	observability.AttendanceMarked.WithLabelValues(model.MethodQR).Inc()
	log.Printf("[INFO] QR attendance marked - student=%s subject=%s date=%s proxy=%v",
		studentID, subjectID, today, rec.QRAttendanceIsProxySuspected)
	return rec, nil
}
