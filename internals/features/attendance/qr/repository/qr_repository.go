package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"presensiku_backend/internals/features/attendance/qr/model"
)

// QRAttendanceRepository: akses ledger untuk jalur single-shot.
type QRAttendanceRepository struct {
	DB *gorm.DB
}

func NewQRAttendanceRepository(db *gorm.DB) *QRAttendanceRepository {
	return &QRAttendanceRepository{DB: db}
}

// HasForDate: duplicate check pra-nonce. Bukan backstop - backstop-nya
// unique index di Insert.
func (r *QRAttendanceRepository) HasForDate(ctx context.Context, studentID, subjectID uuid.UUID, date string) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).
		Model(&model.QRAttendanceModel{}).
		Where("qr_attendance_student_id = ? AND qr_attendance_subject_id = ? AND qr_attendance_date = ?",
			studentID, subjectID, date).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert menulis ledger + audit log dalam satu transaksi.
// Race antar token independen untuk (student, subject, hari) yang sama
// muncul di sini sebagai gorm.ErrDuplicatedKey - diteruskan ke caller.
func (r *QRAttendanceRepository) Insert(ctx context.Context, rec *model.QRAttendanceModel, logEntry *model.AttendanceLogModel) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		logEntry.AttendanceLogStudentID = rec.QRAttendanceStudentID
		logEntry.AttendanceLogSubjectID = rec.QRAttendanceSubjectID
		return tx.Create(logEntry).Error
	})
}
