package model

import (
	"time"

	"github.com/google/uuid"
)

// Metode pencatatan absensi.
const (
	MethodQR     = "qr"     // single-shot scan & submit
	MethodSocket = "socket" // realtime session buffer
	MethodFace   = "face"   // face recognition (modul eksternal)
)

// QRAttendanceModel adalah ledger absensi bersama untuk SEMUA jalur
// ingestion. Unique index (student, subject, date) adalah backstop
// correctness terakhir: dua token berbeda untuk (student, subject, hari)
// yang sama tidak bisa sama-sama tembus - insert kedua kena 23505.
type QRAttendanceModel struct {
	QRAttendanceID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:qr_attendance_id" json:"qr_attendance_id"`

	QRAttendanceStudentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_qr_attendance_student_subject_date;column:qr_attendance_student_id" json:"qr_attendance_student_id"`
	QRAttendanceSubjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_qr_attendance_student_subject_date;column:qr_attendance_subject_id" json:"qr_attendance_subject_id"`

	// Hari kalender (YYYY-MM-DD, UTC) - bukan timestamp.
	QRAttendanceDate string `gorm:"type:varchar(10);not null;uniqueIndex:uq_qr_attendance_student_subject_date;column:qr_attendance_date" json:"qr_attendance_date"`

	QRAttendanceMarkedAt time.Time `gorm:"not null;column:qr_attendance_marked_at" json:"qr_attendance_marked_at"`
	QRAttendanceMethod   string    `gorm:"type:varchar(10);not null;column:qr_attendance_method" json:"qr_attendance_method"`

	// Audit trail jalur QR: nonce token yang dikonsumsi.
	QRAttendanceNonce *string `gorm:"type:varchar(64);column:qr_attendance_nonce" json:"qr_attendance_nonce,omitempty"`

	QRAttendanceLat *float64 `gorm:"column:qr_attendance_lat" json:"qr_attendance_lat,omitempty"`
	QRAttendanceLon *float64 `gorm:"column:qr_attendance_lon" json:"qr_attendance_lon,omitempty"`

	QRAttendanceDistanceM       float64 `gorm:"not null;default:0;column:qr_attendance_distance_m" json:"qr_attendance_distance_m"`
	QRAttendanceIsProxySuspected bool   `gorm:"not null;default:false;column:qr_attendance_is_proxy_suspected" json:"qr_attendance_is_proxy_suspected"`

	// Jalur socket saja.
	QRAttendanceSessionID *string `gorm:"column:qr_attendance_session_id" json:"qr_attendance_session_id,omitempty"`

	QRAttendanceCreatedAt time.Time `gorm:"column:qr_attendance_created_at;autoCreateTime" json:"qr_attendance_created_at"`
}

func (QRAttendanceModel) TableName() string { return "qr_attendance" }
