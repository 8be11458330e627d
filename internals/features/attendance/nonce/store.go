// Package nonce adalah replay guard QR token: setiap nonce hanya boleh
// dikonsumsi tepat satu kali, lintas worker dan lintas instance.
// Atomisitas WAJIB datang dari storage (SET NX / unique key), bukan
// dari lock in-process.
package nonce

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"presensiku_backend/internals/configs"
)

// Store kontrak replay guard.
//
// IsUsed: pre-check murah, non-atomik, murni optimasi short-circuit -
// correctness tidak boleh bergantung padanya.
//
// Consume: atomik. true hanya pada pemanggilan pertama untuk sebuah
// nonce; false untuk semua pemanggilan berikutnya. Ini satu-satunya
// operasi yang menanggung correctness.
type Store interface {
	IsUsed(ctx context.Context, nonce string) (bool, error)
	Consume(ctx context.Context, nonce string) (bool, error)
}

// Select memilih backend sekali di startup: Redis bila client tersedia
// (sudah lolos ping di ConnectRedis), selain itu fallback Postgres.
// Degradasi tidak pernah jadi error ke caller.
func Select(rdb *redis.Client, db *gorm.DB) Store {
	if rdb != nil {
		log.Println("[INFO] Nonce store: Redis (SET NX EX)")
		return NewRedisStore(rdb, configs.NonceTTL)
	}
	log.Println("[WARN] Nonce store: fallback Postgres (unique-key insert)")
	return NewPostgresStore(db, configs.NonceTTL)
}
