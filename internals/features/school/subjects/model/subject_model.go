package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubjectModel adalah collaborator eksternal bagi pipeline absensi:
// pipeline hanya butuh existence, ownership, dan lokasi referensi
// geofence (nullable - subject tanpa lokasi TIDAK digeofence).
type SubjectModel struct {
	SubjectID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:subjects_id" json:"subjects_id"`

	SubjectName string `gorm:"not null;column:subjects_name" json:"subjects_name"`
	SubjectCode string `gorm:"column:subjects_code" json:"subjects_code"`

	SubjectTeacherID uuid.UUID `gorm:"type:uuid;not null;column:subjects_teacher_id" json:"subjects_teacher_id"`

	// Lokasi referensi geofence. Ketiganya nullable; lat+lon harus diisi
	// berpasangan. Radius nil = pakai default dari config.
	SubjectLocationLat     *float64 `gorm:"column:subjects_location_lat"      json:"subjects_location_lat,omitempty"`
	SubjectLocationLon     *float64 `gorm:"column:subjects_location_lon"      json:"subjects_location_lon,omitempty"`
	SubjectLocationRadiusM *float64 `gorm:"column:subjects_location_radius_m" json:"subjects_location_radius_m,omitempty"`

	SubjectCreatedAt time.Time      `gorm:"column:subjects_created_at;autoCreateTime" json:"subjects_created_at"`
	SubjectUpdatedAt *time.Time     `gorm:"column:subjects_updated_at;autoUpdateTime" json:"subjects_updated_at,omitempty"`
	SubjectDeletedAt gorm.DeletedAt `gorm:"column:subjects_deleted_at;index"          json:"subjects_deleted_at,omitempty"`
}

func (SubjectModel) TableName() string { return "subjects" }

// HasLocation: true bila subject punya lokasi referensi lengkap.
func (s *SubjectModel) HasLocation() bool {
	return s.SubjectLocationLat != nil && s.SubjectLocationLon != nil
}
