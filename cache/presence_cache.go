package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	presenceSessionKey = "presence:session:%s:%s" // String: 单个会话的心跳
	presenceUserKey    = "presence:user:%s"       // Set: 用户的在线会话
	defaultPresenceTTL = 60 * time.Second
)

// PresenceCache 基于心跳的用户在线状态
type PresenceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceCache 创建在线状态缓存
func NewPresenceCache(client *redis.Client, ttl time.Duration) *PresenceCache {
	if ttl <= 0 {
		ttl = defaultPresenceTTL
	}
	return &PresenceCache{client: client, ttl: ttl}
}

func sessionKey(userID, sessionID string) string {
	return fmt.Sprintf(presenceSessionKey, userID, sessionID)
}

func userKey(userID string) string {
	return fmt.Sprintf(presenceUserKey, userID)
}

// Touch 刷新会话心跳，连接建立和 ping 时调用
func (c *PresenceCache) Touch(ctx context.Context, userID, sessionID string) error {
	if c.client == nil {
		return ErrRedisUnavailable
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, sessionKey(userID, sessionID), time.Now().UnixMilli(), c.ttl)
	pipe.SAdd(ctx, userKey(userID), sessionID)
	pipe.Expire(ctx, userKey(userID), c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Remove 会话断开。最后一个会话移除后集合随之消失
func (c *PresenceCache) Remove(ctx context.Context, userID, sessionID string) error {
	if c.client == nil {
		return ErrRedisUnavailable
	}

	pipe := c.client.Pipeline()
	pipe.Del(ctx, sessionKey(userID, sessionID))
	pipe.SRem(ctx, userKey(userID), sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// OnlineSessions 心跳仍有效的会话，顺带清理过期成员
func (c *PresenceCache) OnlineSessions(ctx context.Context, userID string) ([]string, error) {
	if c.client == nil {
		return nil, ErrRedisUnavailable
	}

	members, err := c.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	active := make([]string, 0, len(members))
	expired := make([]interface{}, 0)
	for _, sessionID := range members {
		exists, err := c.client.Exists(ctx, sessionKey(userID, sessionID)).Result()
		if err != nil {
			continue
		}
		if exists > 0 {
			active = append(active, sessionID)
		} else {
			expired = append(expired, sessionID)
		}
	}

	if len(expired) > 0 {
		c.client.SRem(ctx, userKey(userID), expired...)
	}
	return active, nil
}

// IsOnline 用户是否有任一会话在线
func (c *PresenceCache) IsOnline(ctx context.Context, userID string) (bool, error) {
	sessions, err := c.OnlineSessions(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(sessions) > 0, nil
}
