// Package ses 实现基于 AWS SES v2 的投递通道。
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"mailveil/backend/internal/relay"
)

// Config SES 通道配置。
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SendEmailAPI SES v2 SendEmail 操作接口，便于测试替换。
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Provider 通过 AWS SES v2 API 投递邮件。
type Provider struct {
	client SendEmailAPI
}

// New 创建 SES 通道。
func New(ctx context.Context, cfg Config) (*Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Provider{client: sesv2.NewFromConfig(awsCfg)}, nil
}

// NewWithClient 使用自定义客户端创建通道，测试用。
func NewWithClient(client SendEmailAPI) *Provider {
	return &Provider{client: client}
}

// Send 投递一封邮件，返回 SES 消息标识。
func (p *Provider) Send(ctx context.Context, msg *relay.Message) (string, error) {
	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.Text)},
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML)}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body:    body,
			},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", relay.ErrSendFailed, err)
	}
	return aws.ToString(out.MessageId), nil
}

// Name 返回通道名称。
func (p *Provider) Name() string {
	return "ses"
}
