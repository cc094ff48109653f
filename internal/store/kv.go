package store

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

// KV 后端原语：hash field + set，每个调用独立原子，跨调用无事务
type KV interface {
	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key, field string) error
	HExists(ctx context.Context, key, field string) (bool, error)

	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) HSet(ctx context.Context, key, field, value string) error {
	return r.c.HSet(ctx, key, field, value).Err()
}

func (r *RedisKV) HGet(ctx context.Context, key, field string) (string, error) {
	val, err := r.c.HGet(ctx, key, field).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.c.HGetAll(ctx, key).Result()
}

func (r *RedisKV) HDel(ctx context.Context, key, field string) error {
	return r.c.HDel(ctx, key, field).Err()
}

func (r *RedisKV) HExists(ctx context.Context, key, field string) (bool, error) {
	return r.c.HExists(ctx, key, field).Result()
}

func (r *RedisKV) SAdd(ctx context.Context, key, member string) error {
	return r.c.SAdd(ctx, key, member).Err()
}

func (r *RedisKV) SRem(ctx context.Context, key, member string) error {
	return r.c.SRem(ctx, key, member).Err()
}

func (r *RedisKV) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.c.SMembers(ctx, key).Result()
}

func (r *RedisKV) SCard(ctx context.Context, key string) (int64, error) {
	return r.c.SCard(ctx, key).Result()
}

func (r *RedisKV) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return r.c.SIsMember(ctx, key, member).Result()
}
