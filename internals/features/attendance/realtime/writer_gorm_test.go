package realtime

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"presensiku_backend/internals/features/attendance/qr/model"
)

// dryRunDB membangun SQL tanpa membuka koneksi database.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  "host=127.0.0.1 user=test password=test dbname=test port=5432 sslmode=disable",
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		DryRun:                 true,
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 logger.Discard,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

func TestLedgerInsert_DuplicateDoesNotAbortTransaction(t *testing.T) {
	db := dryRunDB(t)

	sessionID := "sess-1"
	rec := model.QRAttendanceModel{
		QRAttendanceStudentID: uuid.New(),
		QRAttendanceSubjectID: uuid.New(),
		QRAttendanceDate:      "2026-09-01",
		QRAttendanceMethod:    model.MethodSocket,
		QRAttendanceSessionID: &sessionID,
	}
	sql := db.Clauses(ledgerConflictClause()).Create(&rec).Statement.SQL.String()

	// Student yang sudah absen hari itu (lewat jalur QR, atau flush
	// ulang setelah crash) harus di-skip oleh server. Kalau insert-nya
	// membiarkan 23505 lolos, transaksi flush abort dan setiap
	// statement berikutnya gagal 25P02: batch tidak pernah bisa masuk.
	want := `ON CONFLICT ("qr_attendance_student_id","qr_attendance_subject_id","qr_attendance_date") DO NOTHING`
	if !strings.Contains(sql, want) {
		t.Fatalf("ledger insert must resolve duplicates with %s, got: %s", want, sql)
	}
}
