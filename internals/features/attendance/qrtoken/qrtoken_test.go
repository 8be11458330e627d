package qrtoken

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

const testSecret = "qr-test-secret"

func TestIssueAndValidate_Fresh(t *testing.T) {
	m := NewManager(testSecret, 10*time.Second)
	subjectID := uuid.New()

	tok, err := m.Issue(subjectID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := m.Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.SubjectID != subjectID.String() {
		t.Fatalf("subject mismatch: %s", claims.SubjectID)
	}
	if len(claims.Nonce) != 64 {
		t.Fatalf("expected 64-char hex nonce, got %d chars", len(claims.Nonce))
	}
	if claims.IssuedAtMs == 0 {
		t.Fatalf("missing millisecond timestamp")
	}
	if exp, iat := claims.ExpiresAt.Unix(), claims.IssuedAt.Unix(); exp-iat != 10 {
		t.Fatalf("exp-iat = %d, want TTL 10s", exp-iat)
	}
}

func TestValidate_ExpiredByAge(t *testing.T) {
	m := NewManager(testSecret, 10*time.Second)

	issuedAt := time.Now()
	m.now = func() time.Time { return issuedAt }
	tok, err := m.Issue(uuid.New())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// 5s kemudian: masih valid
	m.now = func() time.Time { return issuedAt.Add(5 * time.Second) }
	if _, err := m.Validate(tok); err != nil {
		t.Fatalf("token at 5s should be valid: %v", err)
	}

	// 11s kemudian: expired
	m.now = func() time.Time { return issuedAt.Add(11 * time.Second) }
	if _, err := m.Validate(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired at 11s, got %v", err)
	}
}

func TestValidate_FutureTimestampRejected(t *testing.T) {
	m := NewManager(testSecret, 10*time.Second)

	issuedAt := time.Now()
	m.now = func() time.Time { return issuedAt }
	tok, err := m.Issue(uuid.New())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Validator berjalan "di masa lalu" relatif terhadap token →
	// umur negatif harus ditolak sebagai tampering/skew.
	m.now = func() time.Time { return issuedAt.Add(-2 * time.Second) }
	if _, err := m.Validate(tok); !errors.Is(err, ErrClockSkew) {
		t.Fatalf("expected ErrClockSkew, got %v", err)
	}
}

func TestValidate_TamperedSignature(t *testing.T) {
	m := NewManager(testSecret, 10*time.Second)
	tok, err := m.Issue(uuid.New())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := NewManager("a-different-secret", 10*time.Second)
	if _, err := other.Validate(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for wrong key, got %v", err)
	}

	if _, err := m.Validate(tok + "x"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for mangled token, got %v", err)
	}

	if _, err := m.Validate("not-a-jwt"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for garbage, got %v", err)
	}
}

func TestIssue_NonceUniquePerToken(t *testing.T) {
	m := NewManager(testSecret, 10*time.Second)
	subjectID := uuid.New()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		tok, err := m.Issue(subjectID)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		claims, err := m.Validate(tok)
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if seen[claims.Nonce] {
			t.Fatalf("nonce reused across tokens: %s", claims.Nonce)
		}
		seen[claims.Nonce] = true
	}
}
