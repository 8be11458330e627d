package model

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceStatModel: counter present/total per (subject, student),
// dinaikkan oleh flush engine jalur realtime.
type AttendanceStatModel struct {
	AttendanceStatID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:attendance_stats_id" json:"attendance_stats_id"`

	AttendanceStatSubjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_stats_subject_student;column:attendance_stats_subject_id" json:"attendance_stats_subject_id"`
	AttendanceStatStudentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_stats_subject_student;column:attendance_stats_student_id" json:"attendance_stats_student_id"`

	AttendanceStatPresent int `gorm:"not null;default:0;column:attendance_stats_present" json:"attendance_stats_present"`
	AttendanceStatTotal   int `gorm:"not null;default:0;column:attendance_stats_total"   json:"attendance_stats_total"`

	AttendanceStatLastMarkedAt string `gorm:"type:varchar(10);column:attendance_stats_last_marked_at" json:"attendance_stats_last_marked_at"`

	AttendanceStatUpdatedAt time.Time `gorm:"column:attendance_stats_updated_at;autoUpdateTime" json:"attendance_stats_updated_at"`
}

func (AttendanceStatModel) TableName() string { return "attendance_stats" }
