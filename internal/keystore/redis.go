package keystore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "keystore:"

// Redis 多实例部署时共享的存储
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, name string) (string, bool, error) {
	v, err := r.client.Get(ctx, redisPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, name, value string) error {
	return r.client.Set(ctx, redisPrefix+name, value, 0).Err()
}

func (r *Redis) Remove(ctx context.Context, name string) error {
	return r.client.Del(ctx, redisPrefix+name).Err()
}
