package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Guard 基于 Redis 实现 JWT 黑名单和限流计数。
// 多实例部署时黑名单和限流窗口需要跨进程共享，所以放在 Redis 里。
type Guard struct {
	rdb *goredis.Client
	ctx context.Context
}

// NewGuard 创建基于 Redis 的守卫存储
func NewGuard(client *Client) *Guard {
	return &Guard{
		rdb: client.Client(),
		ctx: context.Background(),
	}
}

const (
	blacklistPrefix = "mailveil:jwt:blacklist:"
	rateLimitPrefix = "mailveil:ratelimit:"
)

// AddToBlacklist 把 jti 加入黑名单，TTL 取令牌剩余有效期
func (g *Guard) AddToBlacklist(jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // 令牌本身已过期，无需入黑名单
	}
	return g.rdb.Set(g.ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 判断 jti 是否在黑名单中
func (g *Guard) IsBlacklisted(jti string) (bool, error) {
	n, err := g.rdb.Exists(g.ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncrementRateLimit 自增限流计数并返回窗口内的当前值。
// 首次自增时设置窗口过期时间。
func (g *Guard) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	fullKey := rateLimitPrefix + key
	pipe := g.rdb.TxPipeline()
	incr := pipe.Incr(g.ctx, fullKey)
	pipe.ExpireNX(g.ctx, fullKey, window)
	if _, err := pipe.Exec(g.ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// GetRateLimit 返回窗口内的当前计数
func (g *Guard) GetRateLimit(key string) (int64, error) {
	n, err := g.rdb.Get(g.ctx, rateLimitPrefix+key).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	return n, err
}
