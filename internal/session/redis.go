package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/krishisahay/krishisahay-go/internal/errors"
)

const redisKeyPrefix = "krishisahay:session:"

// RedisStore keeps sessions in redis. Expiry is handled by key TTLs.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a store on client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, token, username string, ttl time.Duration) error {
	return s.client.Set(ctx, redisKeyPrefix+token, username, ttl).Err()
}

func (s *RedisStore) Lookup(ctx context.Context, token string, ttl time.Duration) (string, error) {
	username, err := s.client.GetEx(ctx, redisKeyPrefix+token, ttl).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", noSession()
	case err != nil:
		return "", sessionError(err, "lookup")
	}
	return username, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, redisKeyPrefix+token).Err()
}

// Sweep is a no-op; redis evicts expired keys itself.
func (s *RedisStore) Sweep(context.Context) (int64, error) {
	return 0, nil
}

// Ping checks that the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
