package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailveil/backend/internal/storage"
)

// RateLimitByIP 按客户端 IP 限流。
// 计数存放在 RateLimitRepository（内存或 Redis），多实例部署时共享窗口。
// 主要保护入站 webhook 不被刷爆。
func RateLimitByIP(repo storage.RateLimitRepository, log *zap.Logger, limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ip:%s:%s", c.ClientIP(), c.FullPath())

		count, err := repo.IncrementRateLimit(key, window)
		if err != nil {
			// 限流存储不可用时放行，不能因为 Redis 抖动拒绝所有请求
			log.Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > limit {
			log.Warn("rate limit exceeded",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.FullPath()),
				zap.Int64("count", count),
			)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
