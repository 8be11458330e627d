// Package qrtoken menerbitkan dan memverifikasi QR token absensi:
// JWT HS256 berumur pendek dengan nonce 256-bit, ditandatangani key
// khusus QR (terpisah dari key auth umum).
package qrtoken

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrExpired       = errors.New("qrtoken: token expired")
	ErrInvalid       = errors.New("qrtoken: invalid or tampered token")
	ErrMissingClaims = errors.New("qrtoken: missing required claims")
	ErrClockSkew     = errors.New("qrtoken: token timestamp is in the future")
)

// Claims adalah payload QR token.
// IssuedAtMs (ms, jam server) adalah sinyal freshness otoritatif;
// exp standar hanya backstop kasar.
type Claims struct {
	SubjectID  string `json:"course_id"`
	IssuedAtMs int64  `json:"timestamp"`
	Nonce      string `json:"nonce"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	ttl    time.Duration

	now func() time.Time // dioverride di test
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue membuat token untuk subjectID. Nonce TIDAK dicatat di sini -
// nonce baru dikonsumsi saat token benar-benar di-redeem.
func (m *Manager) Issue(subjectID uuid.UUID) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", fmt.Errorf("qrtoken: generate nonce: %w", err)
	}

	now := m.now()
	claims := Claims{
		SubjectID:  subjectID.String(),
		IssuedAtMs: now.UnixMilli(),
		Nonce:      nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)), // exp = iat + TTL
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("qrtoken: sign: %w", err)
	}
	return signed, nil
}

// Validate memverifikasi signature + struktur dulu (check termurah),
// lalu expiry dua lapis: exp standar + umur eksplisit dari IssuedAtMs.
// Timestamp masa depan = tampering/clock skew, selalu ditolak.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	if claims.SubjectID == "" || claims.Nonce == "" || claims.IssuedAtMs == 0 ||
		claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrMissingClaims
	}

	ageMs := m.now().UnixMilli() - claims.IssuedAtMs
	if ageMs < 0 {
		return nil, ErrClockSkew
	}
	if ageMs > m.ttl.Milliseconds() {
		return nil, ErrExpired
	}

	return claims, nil
}

// newNonce: 32 byte random → 64 char hex (256-bit, collision negligible).
func newNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
