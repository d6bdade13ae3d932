package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailveil/backend/internal/auth"
	jwtpkg "mailveil/backend/internal/auth/jwt"
	"mailveil/backend/internal/config"
	"mailveil/backend/internal/health"
	"mailveil/backend/internal/logger"
	"mailveil/backend/internal/monitoring"
	"mailveil/backend/internal/pool"
	"mailveil/backend/internal/relay"
	"mailveil/backend/internal/relay/ses"
	"mailveil/backend/internal/relay/smtp"
	"mailveil/backend/internal/relay/stdout"
	"mailveil/backend/internal/service"
	"mailveil/backend/internal/storage"
	"mailveil/backend/internal/storage/memory"
	redisstore "mailveil/backend/internal/storage/redis"
	sqlstore "mailveil/backend/internal/storage/sql"
	httptransport "mailveil/backend/internal/transport/http"
	"mailveil/backend/internal/websocket"
)

// main 启动别名邮件服务的 HTTP API。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting mailveil server",
		zap.String("mail_domain", cfg.Mail.Domain),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// JWT 黑名单和限流计数优先走 Redis，连不上时退化为进程内存储
	var (
		blacklist storage.JWTRepository
		limiter   storage.RateLimitRepository
	)
	if redisClient, rerr := redisstore.New(&cfg.Redis, log); rerr == nil {
		guard := redisstore.NewGuard(redisClient)
		blacklist, limiter = guard, guard
		defer redisClient.Close()
		log.Info("using redis for token blacklist and rate limiting", zap.String("address", cfg.Redis.Address))
	} else {
		guard := memory.NewStore()
		blacklist, limiter = guard, guard
		log.Warn("redis unavailable, falling back to in-memory guard", zap.Error(rerr))
	}

	// 出站投递通道
	provider, err := buildProvider(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize relay provider: %v", err))
	}
	throttled := relay.NewThrottled(provider, cfg.Relay.PerSecond, cfg.Relay.Burst)
	log.Info("relay provider initialized",
		zap.String("provider", provider.Name()),
		zap.Float64("per_second", cfg.Relay.PerSecond),
	)

	// 监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewChecker(store, limiter, log)

	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	// WebSocket Hub：向在线用户推送新邮件通知
	wsHub := websocket.NewHub(jwtManager, cfg.CORS.AllowedOrigins, log)

	// 入站邮件处理协程池
	workerPool := pool.NewWorkerPool(8, 256, log)

	// 服务层
	authService := auth.NewService(store)
	accessService := service.NewAccessService(store)
	activityService := service.NewActivityService(store, accessService, log)
	aliasService := service.NewAliasService(store, accessService, activityService, cfg)
	reverseService := service.NewReverseAliasService(store, accessService, log)
	inboxService := service.NewInboxService(store, accessService, log)
	outboundService := service.NewOutboundService(store, accessService, activityService, reverseService, throttled, cfg, log)
	inboundService := service.NewInboundService(store, accessService, activityService, reverseService, throttled, cfg, log, wsHub, metrics)
	// 未配置 Stripe 时不注册支付路由
	var billingService *service.BillingService
	if b := service.NewBillingService(store, cfg, log); b.Enabled() {
		billingService = b
		log.Info("billing enabled", zap.String("pro_price_id", cfg.Billing.ProPriceID))
	} else {
		log.Info("billing disabled (stripe keys not configured)")
	}

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:          cfg,
		AuthService:     authService,
		AliasService:    aliasService,
		InboxService:    inboxService,
		OutboundService: outboundService,
		ReverseService:  reverseService,
		ActivityService: activityService,
		BillingService:  billingService,
		InboundService:  inboundService,
		JWTManager:      jwtManager,
		JWTBlacklist:    blacklist,
		RateLimiter:     limiter,
		WebSocketHub:    wsHub,
		HealthChecker:   healthChecker,
		Metrics:         metrics,
		WorkerPool:      workerPool,
		Logger:          log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerPool.Start(ctx)
	go wsHub.Run()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 等待退出信号后优雅关停
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		wsHub.Shutdown()
		workerPool.Stop()
		if err := store.Close(); err != nil {
			log.Error("storage close error", zap.Error(err))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}

// buildProvider 按配置构建出站投递通道。
func buildProvider(cfg *config.Config, log *zap.Logger) (relay.Provider, error) {
	switch cfg.Relay.Provider {
	case "ses":
		return ses.New(context.Background(), ses.Config{
			Region:          cfg.Relay.SESRegion,
			AccessKeyID:     cfg.Relay.SESAccessKeyID,
			SecretAccessKey: cfg.Relay.SESSecretAccessKey,
		})
	case "smtp":
		return smtp.New(smtp.Config{
			Host:     cfg.Relay.SMTPHost,
			Port:     cfg.Relay.SMTPPort,
			Username: cfg.Relay.SMTPUsername,
			Password: cfg.Relay.SMTPPassword,
		}), nil
	default:
		return stdout.New(log), nil
	}
}
