package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"presensiku_backend/internals/features/attendance/nonce"
	"presensiku_backend/internals/features/attendance/qr/model"
	"presensiku_backend/internals/features/attendance/qrtoken"
	subjectModel "presensiku_backend/internals/features/school/subjects/model"
)

/* ===================== FAKES ===================== */

type fakeSubjects struct {
	subjects map[uuid.UUID]*subjectModel.SubjectModel
}

func (f *fakeSubjects) FindByID(_ context.Context, id uuid.UUID) (*subjectModel.SubjectModel, error) {
	s, ok := f.subjects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (f *fakeSubjects) IsOwnedBy(_ context.Context, subjectID, teacherID uuid.UUID) (bool, error) {
	s, ok := f.subjects[subjectID]
	return ok && s.SubjectTeacherID == teacherID, nil
}

// fakeLedger meniru unique index (student, subject, date).
type fakeLedger struct {
	rows []*model.QRAttendanceModel
	logs []*model.AttendanceLogModel
}

func ledgerKey(studentID, subjectID uuid.UUID, date string) string {
	return fmt.Sprintf("%s|%s|%s", studentID, subjectID, date)
}

func (f *fakeLedger) HasForDate(_ context.Context, studentID, subjectID uuid.UUID, date string) (bool, error) {
	for _, r := range f.rows {
		if ledgerKey(r.QRAttendanceStudentID, r.QRAttendanceSubjectID, r.QRAttendanceDate) ==
			ledgerKey(studentID, subjectID, date) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) Insert(_ context.Context, rec *model.QRAttendanceModel, logEntry *model.AttendanceLogModel) error {
	for _, r := range f.rows {
		if ledgerKey(r.QRAttendanceStudentID, r.QRAttendanceSubjectID, r.QRAttendanceDate) ==
			ledgerKey(rec.QRAttendanceStudentID, rec.QRAttendanceSubjectID, rec.QRAttendanceDate) {
			return gorm.ErrDuplicatedKey
		}
	}
	rec.QRAttendanceID = uuid.New()
	f.rows = append(f.rows, rec)
	f.logs = append(f.logs, logEntry)
	return nil
}

/* ===================== SETUP ===================== */

func newTestService(subjects ...*subjectModel.SubjectModel) (*QRService, *fakeLedger) {
	subs := &fakeSubjects{subjects: map[uuid.UUID]*subjectModel.SubjectModel{}}
	for _, s := range subjects {
		subs.subjects[s.SubjectID] = s
	}
	ledger := &fakeLedger{}
	svc := NewQRService(
		qrtoken.NewManager("test-qr-secret", 10*time.Second),
		nonce.NewMemoryStore(30*time.Second),
		subs,
		ledger,
	)
	return svc, ledger
}

func plainSubject(teacherID uuid.UUID) *subjectModel.SubjectModel {
	return &subjectModel.SubjectModel{
		SubjectID:        uuid.New(),
		SubjectName:      "Algoritma",
		SubjectTeacherID: teacherID,
	}
}

func fiberCode(t *testing.T, err error) int {
	t.Helper()
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *fiber.Error, got %T: %v", err, err)
	}
	return fe.Code
}

/* ===================== GENERATE ===================== */

func TestGenerateQR_OwnershipEnforced(t *testing.T) {
	teacherID := uuid.New()
	subject := plainSubject(teacherID)
	svc, _ := newTestService(subject)
	ctx := context.Background()

	if _, err := svc.GenerateQR(ctx, uuid.New(), teacherID); fiberCode(t, err) != fiber.StatusNotFound {
		t.Fatalf("unknown subject should be 404")
	}

	if _, err := svc.GenerateQR(ctx, subject.SubjectID, uuid.New()); fiberCode(t, err) != fiber.StatusForbidden {
		t.Fatalf("non-owner should be 403")
	}

	tok, err := svc.GenerateQR(ctx, subject.SubjectID, teacherID)
	if err != nil {
		t.Fatalf("GenerateQR: %v", err)
	}
	claims, err := svc.Tokens.Validate(tok)
	if err != nil {
		t.Fatalf("issued token should validate: %v", err)
	}
	if claims.SubjectID != subject.SubjectID.String() {
		t.Fatalf("claims subject mismatch")
	}
}

/* ===================== VALIDATE & MARK ===================== */

func TestValidateAndMark_HappyPath(t *testing.T) {
	teacherID := uuid.New()
	subject := plainSubject(teacherID)
	svc, ledger := newTestService(subject)
	ctx := context.Background()

	tok, err := svc.GenerateQR(ctx, subject.SubjectID, teacherID)
	if err != nil {
		t.Fatalf("GenerateQR: %v", err)
	}

	studentID := uuid.New()
	rec, err := svc.ValidateAndMark(ctx, tok, studentID, nil)
	if err != nil {
		t.Fatalf("ValidateAndMark: %v", err)
	}

	if rec.QRAttendanceMethod != model.MethodQR {
		t.Fatalf("method = %q", rec.QRAttendanceMethod)
	}
	if rec.QRAttendanceNonce == nil || len(*rec.QRAttendanceNonce) != 64 {
		t.Fatalf("nonce audit trail missing")
	}
	if rec.QRAttendanceIsProxySuspected {
		t.Fatalf("no location reported - must not be proxy-flagged")
	}
	if len(ledger.rows) != 1 || len(ledger.logs) != 1 {
		t.Fatalf("expected 1 ledger row + 1 audit log, got %d/%d", len(ledger.rows), len(ledger.logs))
	}
}

func TestValidateAndMark_DuplicateBeforeReplay(t *testing.T) {
	teacherID := uuid.New()
	subject := plainSubject(teacherID)
	svc, _ := newTestService(subject)
	ctx := context.Background()
	studentID := uuid.New()

	tok, _ := svc.GenerateQR(ctx, subject.SubjectID, teacherID)
	if _, err := svc.ValidateAndMark(ctx, tok, studentID, nil); err != nil {
		t.Fatalf("first mark: %v", err)
	}

	// Resubmit token yang sama: duplicate check harus menang atas
	// replay check (error "already marked", bukan "replay detected").
	_, err := svc.ValidateAndMark(ctx, tok, studentID, nil)
	if fiberCode(t, err) != fiber.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
	var fe *fiber.Error
	errors.As(err, &fe)
	if !strings.Contains(fe.Message, "already marked") {
		t.Fatalf("expected duplicate-attendance error, got %q", fe.Message)
	}

	// Token baru untuk (student, subject, hari) yang sama juga duplicate.
	tok2, _ := svc.GenerateQR(ctx, subject.SubjectID, teacherID)
	if _, err := svc.ValidateAndMark(ctx, tok2, studentID, nil); fiberCode(t, err) != fiber.StatusConflict {
		t.Fatalf("fresh token same day should still be 409 duplicate")
	}
}

func TestValidateAndMark_ReplayDetected(t *testing.T) {
	teacherID := uuid.New()
	subject := plainSubject(teacherID)
	svc, _ := newTestService(subject)
	ctx := context.Background()

	tok, _ := svc.GenerateQR(ctx, subject.SubjectID, teacherID)
	if _, err := svc.ValidateAndMark(ctx, tok, uuid.New(), nil); err != nil {
		t.Fatalf("first mark: %v", err)
	}

	// Student LAIN memakai token curian yang sama: lolos duplicate
	// check (belum absen), tapi nonce sudah terpakai → replay.
	_, err := svc.ValidateAndMark(ctx, tok, uuid.New(), nil)
	if fiberCode(t, err) != fiber.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
	var fe *fiber.Error
	errors.As(err, &fe)
	if !strings.Contains(fe.Message, "replay") {
		t.Fatalf("expected replay error, got %q", fe.Message)
	}
}

func TestValidateAndMark_ExpiredToken(t *testing.T) {
	teacherID := uuid.New()
	subject := plainSubject(teacherID)
	svc, _ := newTestService(subject)
	svc.Tokens = qrtoken.NewManager("test-qr-secret", 20*time.Millisecond)
	ctx := context.Background()

	tok, _ := svc.GenerateQR(ctx, subject.SubjectID, teacherID)
	time.Sleep(50 * time.Millisecond)

	if _, err := svc.ValidateAndMark(ctx, tok, uuid.New(), nil); fiberCode(t, err) != fiber.StatusUnauthorized {
		t.Fatalf("expired token should be 401")
	}
}

func TestValidateAndMark_GarbageToken(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.ValidateAndMark(context.Background(), "not-a-token", uuid.New(), nil); fiberCode(t, err) != fiber.StatusUnauthorized {
		t.Fatalf("garbage token should be 401")
	}
}

func TestValidateAndMark_SubjectVanished(t *testing.T) {
	teacherID := uuid.New()
	subject := plainSubject(teacherID)
	svc, _ := newTestService(subject)
	ctx := context.Background()

	tok, _ := svc.GenerateQR(ctx, subject.SubjectID, teacherID)

	// Admin menghapus course di antara issuance dan redeem.
	subs := svc.Subjects.(*fakeSubjects)
	delete(subs.subjects, subject.SubjectID)

	if _, err := svc.ValidateAndMark(ctx, tok, uuid.New(), nil); fiberCode(t, err) != fiber.StatusUnprocessableEntity {
		t.Fatalf("vanished subject should be 422")
	}
}

func TestValidateAndMark_Geofence(t *testing.T) {
	teacherID := uuid.New()
	lat, lon, radius := -6.2, 106.8, 50.0
	subject := &subjectModel.SubjectModel{
		SubjectID:              uuid.New(),
		SubjectName:            "Fisika",
		SubjectTeacherID:       teacherID,
		SubjectLocationLat:     &lat,
		SubjectLocationLon:     &lon,
		SubjectLocationRadiusM: &radius,
	}
	svc, _ := newTestService(subject)
	ctx := context.Background()

	// Dalam radius: tidak proxy, distance ~0.
	tok, _ := svc.GenerateQR(ctx, subject.SubjectID, teacherID)
	rec, err := svc.ValidateAndMark(ctx, tok, uuid.New(), &Location{Lat: lat, Lon: lon})
	if err != nil {
		t.Fatalf("in-range mark: %v", err)
	}
	if rec.QRAttendanceIsProxySuspected || rec.QRAttendanceDistanceM != 0 {
		t.Fatalf("same point should not be proxy, got proxy=%v dist=%v",
			rec.QRAttendanceIsProxySuspected, rec.QRAttendanceDistanceM)
	}

	// Jauh di luar radius: tetap dicatat tapi proxy-flagged.
	tok2, _ := svc.GenerateQR(ctx, subject.SubjectID, teacherID)
	rec2, err := svc.ValidateAndMark(ctx, tok2, uuid.New(), &Location{Lat: lat + 0.01, Lon: lon})
	if err != nil {
		t.Fatalf("out-of-range mark: %v", err)
	}
	if !rec2.QRAttendanceIsProxySuspected {
		t.Fatalf("out-of-range scan should be proxy-suspected")
	}
	if rec2.QRAttendanceDistanceM <= radius {
		t.Fatalf("distance %v should exceed radius", rec2.QRAttendanceDistanceM)
	}
}

func TestValidateAndMark_NoReferenceNeverProxy(t *testing.T) {
	teacherID := uuid.New()
	subject := plainSubject(teacherID) // tanpa lokasi referensi
	svc, _ := newTestService(subject)
	ctx := context.Background()

	tok, _ := svc.GenerateQR(ctx, subject.SubjectID, teacherID)
	rec, err := svc.ValidateAndMark(ctx, tok, uuid.New(), &Location{Lat: -6.9, Lon: 107.6})
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if rec.QRAttendanceIsProxySuspected {
		t.Fatalf("no reference configured - must never be proxy-flagged")
	}
	if rec.QRAttendanceDistanceM != 0 {
		t.Fatalf("skipped geofence should report 0 distance, got %v", rec.QRAttendanceDistanceM)
	}
}
