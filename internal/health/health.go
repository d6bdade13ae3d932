package health

import (
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"mailveil/backend/internal/storage"
)

// Checker 健康检查器
type Checker struct {
	health healthcheck.Handler
	store  storage.Store
	logger *zap.Logger
}

// NewChecker 创建健康检查器。
// guard 为可选的限流/黑名单存储（Redis），非空时纳入就绪检查。
func NewChecker(store storage.Store, guard storage.RateLimitRepository, logger *zap.Logger) *Checker {
	hc := &Checker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(2000))

	hc.health.AddReadinessCheck("store", func() error {
		return hc.store.Health()
	})

	if guard != nil {
		hc.health.AddReadinessCheck("guard", func() error {
			_, err := guard.GetRateLimit("health_check")
			return err
		})
	}

	return hc
}

// Handler 返回健康检查处理器（/live 和 /ready）
func (hc *Checker) Handler() http.Handler {
	return hc.health
}
