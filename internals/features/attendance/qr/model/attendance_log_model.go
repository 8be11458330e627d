package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AttendanceLogModel: audit trail append-only. Satu row per scan yang
// berhasil dipersist, dari jalur mana pun.
type AttendanceLogModel struct {
	AttendanceLogID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:attendance_logs_id" json:"attendance_logs_id"`

	AttendanceLogStudentID uuid.UUID `gorm:"type:uuid;not null;index;column:attendance_logs_student_id" json:"attendance_logs_student_id"`
	AttendanceLogSubjectID uuid.UUID `gorm:"type:uuid;not null;index;column:attendance_logs_subject_id" json:"attendance_logs_subject_id"`

	AttendanceLogDate      string `gorm:"type:varchar(10);not null;column:attendance_logs_date" json:"attendance_logs_date"`
	AttendanceLogTimestamp string `gorm:"column:attendance_logs_timestamp" json:"attendance_logs_timestamp"`

	// {lat, lon} - disimpan sebagai JSONB untuk audit.
	AttendanceLogLocation datatypes.JSON `gorm:"type:jsonb;column:attendance_logs_location" json:"attendance_logs_location,omitempty"`

	AttendanceLogDistanceM        float64 `gorm:"not null;default:0;column:attendance_logs_distance_m" json:"attendance_logs_distance_m"`
	AttendanceLogIsProxySuspected bool    `gorm:"not null;default:false;column:attendance_logs_is_proxy_suspected" json:"attendance_logs_is_proxy_suspected"`

	AttendanceLogMethod    string  `gorm:"type:varchar(10);not null;column:attendance_logs_method" json:"attendance_logs_method"`
	AttendanceLogSessionID *string `gorm:"column:attendance_logs_session_id" json:"attendance_logs_session_id,omitempty"`

	AttendanceLogCreatedAt time.Time `gorm:"column:attendance_logs_created_at;autoCreateTime" json:"attendance_logs_created_at"`
}

func (AttendanceLogModel) TableName() string { return "attendance_logs" }
