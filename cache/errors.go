package cache

import "errors"

var (
	// ErrRedisUnavailable Redis 未初始化
	ErrRedisUnavailable = errors.New("redis client not initialized")
	// ErrCacheMiss 缓存未命中
	ErrCacheMiss = errors.New("cache miss")
)
