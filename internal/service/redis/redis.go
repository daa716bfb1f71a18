package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type (
	RedisService struct {
		rdb *redis.Client
	}
)

func NewRedis(rdb *redis.Client) *RedisService {
	return &RedisService{
		rdb: rdb,
	}
}

// Dial opens a client and checks the server answers.
func Dial(ctx context.Context, opts *redis.Options) (*RedisService, error) {
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewRedis(rdb), nil
}

func (r *RedisService) RPush(ctx context.Context, key string, value ...any) error {
	return r.rdb.RPush(ctx, key, value...).Err()
}

func (r *RedisService) LRange(ctx context.Context, key string) ([]string, error) {
	return r.rdb.LRange(ctx, key, 0, -1).Result()
}

func (r *RedisService) LTrim(ctx context.Context, key string, start, stop int64) error {
	return r.rdb.LTrim(ctx, key, start, stop).Err()
}

func (r *RedisService) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.rdb.Expire(ctx, key, ttl).Err()
}

func (r *RedisService) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

func (r *RedisService) Close() error {
	return r.rdb.Close()
}
