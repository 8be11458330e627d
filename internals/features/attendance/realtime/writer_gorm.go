package realtime

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"presensiku_backend/internals/features/attendance/qr/model"
)

// GormFlushWriter mempersist batch sesi ke ledger yang SAMA dengan
// jalur single-shot, dalam satu transaksi per sesi.
// Idempotensi per (student, hari) datang dari unique index ledger:
// row duplikat di-skip tanpa menyentuh counter atau audit log.
type GormFlushWriter struct {
	DB *gorm.DB
}

func NewGormFlushWriter(db *gorm.DB) *GormFlushWriter {
	return &GormFlushWriter{DB: db}
}

// ledgerConflictClause menarget unique index (student, subject, date).
// Duplikat WAJIB di-skip di sisi server (DO NOTHING), bukan lewat error
// 23505: satu error saja meng-abort seluruh transaksi flush dan semua
// statement berikutnya kena 25P02.
func ledgerConflictClause() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{
			{Name: "qr_attendance_student_id"},
			{Name: "qr_attendance_subject_id"},
			{Name: "qr_attendance_date"},
		},
		DoNothing: true,
	}
}

func (w *GormFlushWriter) WriteSession(ctx context.Context, batch *FlushBatch) (int, error) {
	inserted := 0

	err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, scan := range batch.Scans {
			sessionID := batch.SessionID
			lat, lon := scan.Lat, scan.Lon

			rec := model.QRAttendanceModel{
				QRAttendanceStudentID:        scan.StudentID,
				QRAttendanceSubjectID:        batch.SubjectID,
				QRAttendanceDate:             batch.Date,
				QRAttendanceMarkedAt:         tx.NowFunc(),
				QRAttendanceMethod:           model.MethodSocket,
				QRAttendanceLat:              &lat,
				QRAttendanceLon:              &lon,
				QRAttendanceDistanceM:        scan.DistanceM,
				QRAttendanceIsProxySuspected: scan.IsProxy,
				QRAttendanceSessionID:        &sessionID,
			}
			res := tx.Clauses(ledgerConflictClause()).Create(&rec)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Sudah absen hari ini (flush ulang, atau sudah lewat
				// jalur QR). Skip - jangan naikkan counter dua kali.
				continue
			}
			inserted++

			// Counter present/total per (subject, student).
			stat := model.AttendanceStatModel{
				AttendanceStatSubjectID:    batch.SubjectID,
				AttendanceStatStudentID:    scan.StudentID,
				AttendanceStatPresent:      1,
				AttendanceStatTotal:        1,
				AttendanceStatLastMarkedAt: batch.Date,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "attendance_stats_subject_id"},
					{Name: "attendance_stats_student_id"},
				},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"attendance_stats_present":        gorm.Expr("attendance_stats.attendance_stats_present + 1"),
					"attendance_stats_total":          gorm.Expr("attendance_stats.attendance_stats_total + 1"),
					"attendance_stats_last_marked_at": batch.Date,
				}),
			}).Create(&stat).Error; err != nil {
				return err
			}

			// Audit log.
			var locJSON datatypes.JSON
			if b, mErr := json.Marshal(map[string]float64{"lat": scan.Lat, "lon": scan.Lon}); mErr == nil {
				locJSON = datatypes.JSON(b)
			}
			logEntry := model.AttendanceLogModel{
				AttendanceLogStudentID:        scan.StudentID,
				AttendanceLogSubjectID:        batch.SubjectID,
				AttendanceLogDate:             batch.Date,
				AttendanceLogTimestamp:        scan.Timestamp,
				AttendanceLogLocation:         locJSON,
				AttendanceLogDistanceM:        scan.DistanceM,
				AttendanceLogIsProxySuspected: scan.IsProxy,
				AttendanceLogMethod:           model.MethodSocket,
				AttendanceLogSessionID:        &sessionID,
			}
			if err := tx.Create(&logEntry).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
