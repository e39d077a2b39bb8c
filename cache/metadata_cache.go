package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	metadataKeyPrefix  = "stuffchat:media:"
	defaultMetadataTTL = 24 * time.Hour
)

// MetadataCache 缓存解析器的元数据与歌单结果，避免重复调用外部进程
type MetadataCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMetadataCache 创建元数据缓存
func NewMetadataCache(client *redis.Client, ttl time.Duration) *MetadataCache {
	if ttl <= 0 {
		ttl = defaultMetadataTTL
	}
	return &MetadataCache{client: client, ttl: ttl}
}

// Get 未命中时返回 ErrCacheMiss
func (c *MetadataCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.client == nil {
		return nil, ErrRedisUnavailable
	}
	data, err := c.client.Get(ctx, metadataKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return data, nil
}

// Set 写入并设置过期时间
func (c *MetadataCache) Set(ctx context.Context, key string, value []byte) error {
	if c.client == nil {
		return ErrRedisUnavailable
	}
	return c.client.Set(ctx, metadataKeyPrefix+key, value, c.ttl).Err()
}
