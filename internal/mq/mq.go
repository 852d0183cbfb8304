// Package mq 事件投递。Redis Streams 与 Kafka 两种实现共享同一个 Producer 接口
package mq

import "context"

// Producer 生产者接口
type Producer interface {
	// Publish 发送消息，key 用于分区排序 (例如发送地址)，传空字符串则随机分区
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}

// Nop 未配置消息队列时使用，丢弃所有消息
type Nop struct{}

func (Nop) Publish(context.Context, string, string, []byte) error { return nil }
func (Nop) Close() error                                          { return nil }
