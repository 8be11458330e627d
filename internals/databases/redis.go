package database

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"presensiku_backend/internals/configs"
)

// ConnectRedis membuka koneksi Redis untuk nonce store.
// Return nil bila REDIS_URL kosong atau Redis tidak reachable -
// caller wajib fallback ke backend Postgres, bukan error ke user.
func ConnectRedis() *redis.Client {
	if configs.RedisURL == "" {
		log.Println("[INFO] REDIS_URL kosong - nonce store pakai fallback Postgres")
		return nil
	}

	opt, err := redis.ParseURL(configs.RedisURL)
	if err != nil {
		log.Printf("[WARN] REDIS_URL tidak valid (%v) - fallback ke Postgres", err)
		return nil
	}
	opt.DialTimeout = 3 * time.Second

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[WARN] Redis unreachable (%v) - fallback ke Postgres", err)
		_ = rdb.Close()
		return nil
	}

	log.Println("✅ Redis connected (nonce store).")
	return rdb
}
