package deliveries

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "delivery:"

// Storage remembers which change messages have already produced a push.
type Storage struct {
	redis *redis.Client
}

func NewStorage(client *redis.Client) *Storage {
	return &Storage{
		redis: client,
	}
}

// Claim marks key as delivered for ttl. It returns false if the key was already claimed.
func (s *Storage) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.redis.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
