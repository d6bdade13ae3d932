package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailveil/backend/internal/auth/jwt"
	"mailveil/backend/internal/storage"
)

// JWTAuth JWT 认证中间件
type JWTAuth struct {
	jwtManager *jwt.Manager
	blacklist  storage.JWTRepository
	log        *zap.Logger
}

// NewJWTAuth 创建 JWT 认证中间件。blacklist 存放已登出令牌的 jti。
func NewJWTAuth(jwtManager *jwt.Manager, blacklist storage.JWTRepository, log *zap.Logger) *JWTAuth {
	return &JWTAuth{
		jwtManager: jwtManager,
		blacklist:  blacklist,
		log:        log,
	}
}

// RequireAuth 要求 JWT 认证
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			c.Abort()
			return
		}

		claims, err := ja.jwtManager.ValidateToken(token)
		if err != nil {
			ja.log.Warn("invalid token",
				zap.String("error", err.Error()),
				zap.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			c.Abort()
			return
		}

		// 已登出的令牌按无效处理
		if blocked, err := ja.blacklist.IsBlacklisted(claims.ID); err == nil && blocked {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			c.Abort()
			return
		}

		// 将用户信息存储到上下文
		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("plan", claims.Plan)
		c.Set("jti", claims.ID)

		c.Next()
	}
}

// extractToken 从请求中提取 JWT token
func (ja *JWTAuth) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	token, err := c.Cookie("access_token")
	if err == nil && token != "" {
		return token
	}

	return ""
}
