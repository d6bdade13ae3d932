// Package relay 定义外部邮件投递通道的抽象。
// 系统自身不做 MTA，实际投递全部交给外部通道（SES、SMTP 提交等）。
package relay

import (
	"context"
	"errors"
)

// ErrSendFailed 投递失败错误。单次投递失败即为终态，不做重试。
var ErrSendFailed = errors.New("relay send failed")

// Message 一封待投递的邮件。
type Message struct {
	From    string // 可见发件人（别名地址或 noreply 包装）
	To      string
	Subject string
	Text    string
	HTML    string // 可选
	ReplyTo string // 回信路由地址
}

// Provider 邮件投递通道接口。
type Provider interface {
	// Send 投递一封邮件，返回通道侧的消息标识。
	Send(ctx context.Context, msg *Message) (string, error)

	// Name 返回通道名称，用于日志和指标。
	Name() string
}
