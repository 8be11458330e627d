package nonce

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "qr_nonce:"

// RedisStore: backend preferred. SET NX + EX adalah satu operasi atomik,
// jadi Consume map langsung ke primitive-nya; TTL membereskan expiry
// tanpa job pembersih.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) IsUsed(ctx context.Context, nonce string) (bool, error) {
	n, err := s.rdb.Exists(ctx, redisKeyPrefix+nonce).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Consume(ctx context.Context, nonce string) (bool, error) {
	// true hanya bila key belum ada (first consume wins).
	return s.rdb.SetNX(ctx, redisKeyPrefix+nonce, "1", s.ttl).Result()
}
