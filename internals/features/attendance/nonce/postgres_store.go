package nonce

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
)

// QRNonceModel: fallback durable. Nonce jadi primary key - constraint
// uniqueness-nya ADALAH atomisitas consume.
type QRNonceModel struct {
	QRNonceValue     string    `gorm:"primaryKey;column:qr_nonces_value"`
	QRNonceExpiresAt time.Time `gorm:"not null;index;column:qr_nonces_expires_at"`
}

func (QRNonceModel) TableName() string { return "qr_nonces" }

// PostgresStore: Consume = insert yang gagal duplicate-key pada
// percobaan kedua. Sweep berkala menghapus row kadaluarsa - itu murni
// garbage collection, bukan correctness (nonce 256-bit tidak tabrakan).
type PostgresStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewPostgresStore(db *gorm.DB, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db, ttl: ttl}
}

func (s *PostgresStore) IsUsed(ctx context.Context, nonce string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&QRNonceModel{}).
		Where("qr_nonces_value = ?", nonce).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) Consume(ctx context.Context, nonce string) (bool, error) {
	rec := QRNonceModel{
		QRNonceValue:     nonce,
		QRNonceExpiresAt: time.Now().Add(s.ttl),
	}
	err := s.db.WithContext(ctx).Create(&rec).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil // replay
	}
	return false, err
}

// StartSweeper menjalankan pembersihan row kadaluarsa tiap interval,
// berhenti saat ctx dibatalkan. Interval defaultnya 10× TTL sudah
// lebih dari cukup - row basi tidak mengganggu correctness.
func (s *PostgresStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * s.ttl
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				res := s.db.WithContext(ctx).
					Where("qr_nonces_expires_at < ?", time.Now()).
					Delete(&QRNonceModel{})
				if res.Error != nil {
					log.Printf("[WARN] nonce sweep err: %v", res.Error)
				} else if res.RowsAffected > 0 {
					log.Printf("[INFO] nonce sweep: %d expired rows removed", res.RowsAffected)
				}
			}
		}
	}()
}
