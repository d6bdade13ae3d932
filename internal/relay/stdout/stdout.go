// Package stdout 实现开发环境使用的投递通道，只打印不投递。
package stdout

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailveil/backend/internal/relay"
)

// Provider 把邮件内容写入日志，用于本地开发和联调。
type Provider struct {
	log *zap.Logger
}

// New 创建 stdout 通道。
func New(log *zap.Logger) *Provider {
	return &Provider{log: log}
}

// Send 记录邮件内容并返回本地标识。
func (p *Provider) Send(ctx context.Context, msg *relay.Message) (string, error) {
	id := "dev-" + uuid.NewString()
	p.log.Info("outbound mail (stdout provider)",
		zap.String("transport_id", id),
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("reply_to", msg.ReplyTo),
		zap.String("subject", msg.Subject),
		zap.Int("text_len", len(msg.Text)),
	)
	return id, nil
}

// Name 返回通道名称。
func (p *Provider) Name() string {
	return "stdout"
}
