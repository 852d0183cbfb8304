// Package cache 进程内短 TTL 缓存
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type Cache struct {
	c *gocache.Cache
}

// New ttl 为默认过期时间，过期条目按 2*ttl 周期清理
func New(ttl time.Duration) *Cache {
	return &Cache{c: gocache.New(ttl, 2*ttl)}
}

// Uint64 命中直接返回，未命中调用 load 并写入。load 失败不缓存
func (c *Cache) Uint64(ctx context.Context, key string, load func(context.Context) (uint64, error)) (uint64, error) {
	if v, ok := c.c.Get(key); ok {
		return v.(uint64), nil
	}
	v, err := load(ctx)
	if err != nil {
		return 0, err
	}
	c.c.SetDefault(key, v)
	return v, nil
}

func (c *Cache) Delete(key string) {
	c.c.Delete(key)
}
