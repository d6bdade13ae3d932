package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mailveil/backend/internal/auth"
	jwtpkg "mailveil/backend/internal/auth/jwt"
	"mailveil/backend/internal/config"
	"mailveil/backend/internal/health"
	"mailveil/backend/internal/middleware"
	"mailveil/backend/internal/monitoring"
	"mailveil/backend/internal/pool"
	"mailveil/backend/internal/service"
	"mailveil/backend/internal/storage"
	"mailveil/backend/internal/websocket"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	aliases    *service.AliasService
	inbox      *service.InboxService
	outbound   *service.OutboundService
	reverse    *service.ReverseAliasService
	activity   *service.ActivityService
	billing    *service.BillingService
	inboundSvc *service.InboundService
	pool       *pool.WorkerPool
	metrics    *monitoring.Metrics
	log        *zap.Logger
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config          *config.Config
	AuthService     *auth.Service
	AliasService    *service.AliasService
	InboxService    *service.InboxService
	OutboundService *service.OutboundService
	ReverseService  *service.ReverseAliasService
	ActivityService *service.ActivityService
	BillingService  *service.BillingService
	InboundService  *service.InboundService
	JWTManager      *jwtpkg.Manager
	JWTBlacklist    storage.JWTRepository
	RateLimiter     storage.RateLimitRepository
	WebSocketHub    *websocket.Hub
	HealthChecker   *health.Checker
	Metrics         *monitoring.Metrics
	WorkerPool      *pool.WorkerPool
	Logger          *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(monitor.HTTPMetrics())

	// 全局请求体上限 2MB，邮件正文走 JSON 不带附件
	router.Use(middleware.RequestSizeLimit(2 * 1024 * 1024))

	corsConfig := gincors.Config{
		AllowOrigins: deps.Config.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		aliases:    deps.AliasService,
		inbox:      deps.InboxService,
		outbound:   deps.OutboundService,
		reverse:    deps.ReverseService,
		activity:   deps.ActivityService,
		billing:    deps.BillingService,
		inboundSvc: deps.InboundService,
		pool:       deps.WorkerPool,
		metrics:    deps.Metrics,
		log:        deps.Logger,
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.JWTManager, deps.JWTBlacklist, deps.Config.JWT.AccessExpiry, deps.Metrics, deps.Logger)
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.JWTBlacklist, deps.Logger)

	// 健康检查与指标
	if deps.HealthChecker != nil {
		// healthcheck.Handler 自带 /live 和 /ready 路由
		healthHandler := gin.WrapH(http.StripPrefix("/health", deps.HealthChecker.Handler()))
		router.GET("/health/live", healthHandler)
		router.GET("/health/ready", healthHandler)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 入站邮件网关回调，按 IP 限流防探测
	webhooks := router.Group("/webhooks")
	{
		inboundLimit := middleware.RateLimitByIP(deps.RateLimiter, deps.Logger, int64(deps.Config.Mail.WebhookMaxPerIP), time.Hour)
		webhooks.POST("/inbound", inboundLimit, handler.inboundWebhook)
		if deps.BillingService != nil {
			webhooks.POST("/stripe", handler.stripeWebhook)
		}
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.POST("/logout", jwtAuth.RequireAuth(), authHandler.Logout)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
			authRoutes.PUT("/password", jwtAuth.RequireAuth(), authHandler.ChangePassword)
		}

		// 面板习惯用 /user 取当前用户，与 /auth/me 等价
		v1.GET("/user", jwtAuth.RequireAuth(), authHandler.Me)

		// ========== Alias Routes ==========
		aliasRoutes := v1.Group("/aliases")
		aliasRoutes.Use(jwtAuth.RequireAuth())
		{
			aliasRoutes.POST("", handler.createAlias)
			aliasRoutes.GET("", handler.listAliases)
			aliasRoutes.PATCH("/:id", handler.toggleAlias)

			// 协作者管理（仅所有者）
			aliasRoutes.POST("/:id/collaborators", handler.addCollaborator)
			aliasRoutes.DELETE("/:id/collaborators/:userId", handler.removeCollaborator)
		}

		// ========== Inbox Routes ==========
		inboxRoutes := v1.Group("/inbox")
		inboxRoutes.Use(jwtAuth.RequireAuth())
		{
			inboxRoutes.GET("", handler.listEntries)
			inboxRoutes.GET("/:id", handler.getEntry)
			inboxRoutes.PATCH("/:id", handler.markEntryRead)
			inboxRoutes.DELETE("/:id", handler.deleteEntry)
		}

		// ========== Outbound Routes ==========
		v1.POST("/send", jwtAuth.RequireAuth(), handler.sendMail)

		// ========== Reverse Alias Routes ==========
		reverseRoutes := v1.Group("/reverse-aliases")
		reverseRoutes.Use(jwtAuth.RequireAuth())
		{
			reverseRoutes.GET("", handler.listReverseAliases)
			reverseRoutes.DELETE("/:id", handler.deactivateReverseAlias)
		}

		// ========== Activity Routes ==========
		v1.GET("/activities", jwtAuth.RequireAuth(), handler.aliasActivity)

		// ========== Billing Routes ==========
		if deps.BillingService != nil {
			v1.POST("/billing/checkout", jwtAuth.RequireAuth(), handler.createCheckout)
		}

	}

	// ========== WebSocket ==========
	if deps.WebSocketHub != nil {
		router.GET("/ws", deps.WebSocketHub.Handle())
	}

	return router
}
