package mq

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisProducer 基于 Redis Stream (XADD) 的生产者
type RedisProducer struct {
	client *redis.Client
	// MaxLen >0 时近似裁剪 stream 长度
	MaxLen int64
}

func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client, MaxLen: 100_000}
}

// Publish stream 名即 topic，key 写入 "key" 字段供消费方分组
func (p *RedisProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"key":     key,
			"payload": payload,
		},
	}
	if p.MaxLen > 0 {
		args.MaxLen = p.MaxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd error: %w", err)
	}
	return nil
}

// Close 连接由调用方持有，这里不关闭
func (p *RedisProducer) Close() error { return nil }
