package relay

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttled 在任意 Provider 外包一层令牌桶限速，
// 避免突发转发把外部通道的配额打穿。
type Throttled struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewThrottled 创建限速通道。
//
// 参数:
//   - inner: 实际投递通道
//   - perSecond: 每秒允许的投递数
//   - burst: 突发容量
func NewThrottled(inner Provider, perSecond float64, burst int) *Throttled {
	return &Throttled{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Send 等待令牌后投递。上下文取消时直接返回。
func (t *Throttled) Send(ctx context.Context, msg *Message) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.inner.Send(ctx, msg)
}

// Name 返回被包装通道的名称。
func (t *Throttled) Name() string {
	return t.inner.Name()
}
