// Package smtp 实现经认证 SMTP 提交端口投递的通道，
// 适用于自建中继或第三方 SMTP 服务。
package smtp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"mailveil/backend/internal/relay"
)

// Config SMTP 通道配置。
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Provider 通过 SMTP 提交端口投递邮件。
type Provider struct {
	dialer *gomail.Dialer
}

// New 创建 SMTP 通道。
func New(cfg Config) *Provider {
	return &Provider{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send 投递一封邮件。SMTP 协议不返回消息标识，
// 这里生成一个本地标识用于关联邮件记录。
func (p *Provider) Send(ctx context.Context, msg *relay.Message) (string, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	// gomail 不支持上下文，发送前检查一次取消状态
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if err := p.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("%w: %v", relay.ErrSendFailed, err)
	}
	return "smtp-" + uuid.NewString(), nil
}

// Name 返回通道名称。
func (p *Provider) Name() string {
	return "smtp"
}
