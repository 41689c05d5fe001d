package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bapkit/bapvault/internal/errs"
)

// RedisStore implements Store on a single Redis instance.
type RedisStore struct {
	Client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore dials redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{Client: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errs.ErrNotFound
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, key, val string) error {
	return s.Client.Set(ctx, key, val, 0).Err()
}

func (s *RedisStore) SetTTL(ctx context.Context, key, val string, ttl time.Duration) error {
	return s.Client.Set(ctx, key, val, ttl).Err()
}

func (s *RedisStore) GetDel(ctx context.Context, key string) (string, error) {
	v, err := s.Client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errs.ErrNotFound
	}
	return v, err
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.Client.Del(ctx, key).Err()
}

func (s *RedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	args := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	return s.Client.HSet(ctx, key, args).Err()
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.Client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, errs.ErrNotFound
	}
	return m, nil
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.Client.Keys(ctx, pattern).Result()
}

// IncrWindow bumps the counter and arms the expiry window on first increment,
// in a single round-trip.
func (s *RedisStore) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	multi := s.Client.Pipeline()
	incr := multi.Incr(ctx, key)
	multi.ExpireNX(ctx, key, ttl)
	if _, err := multi.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
