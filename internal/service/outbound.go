package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailveil/backend/internal/config"
	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/relay"
	"mailveil/backend/internal/storage"
)

// sentPreviewLimit 发信动态里正文预览的最大字符数
const sentPreviewLimit = 100

var (
	// ErrInvalidRecipient 收件地址格式不合法
	ErrInvalidRecipient = errors.New("invalid recipient address")
	// ErrAliasInactive 别名已停用，不能发信
	ErrAliasInactive = errors.New("alias is deactivated")
	// ErrTransport 中继发送失败
	ErrTransport = errors.New("mail transport failed")
)

// OutboundService 出站发信：以别名身份发出邮件，
// 经反向别名隐藏发信人的真实地址。
type OutboundService struct {
	store    storage.Store
	access   *AccessService
	activity *ActivityService
	reverse  *ReverseAliasService
	provider relay.Provider
	cfg      *config.Config
	log      *zap.Logger
}

// NewOutboundService 创建出站发信服务。
func NewOutboundService(
	store storage.Store,
	access *AccessService,
	activity *ActivityService,
	reverse *ReverseAliasService,
	provider relay.Provider,
	cfg *config.Config,
	log *zap.Logger,
) *OutboundService {
	return &OutboundService{
		store:    store,
		access:   access,
		activity: activity,
		reverse:  reverse,
		provider: provider,
		cfg:      cfg,
		log:      log,
	}
}

// SendInput 定义一次出站发信请求。
type SendInput struct {
	CallerID         string
	FromAliasAddress string
	To               string
	Subject          string
	BodyPlain        string
	BodyHTML         string
}

// Send 以别名身份发送邮件。
//
// 流程：解析别名并校验访问权限和角色（viewer 只读不能发），
// 取得或新建 (别名, 收件人) 的反向别名，走中继发出，
// 落一条 sent 记录并累计计数；协作别名追加 sent 动态。
// 对外可见的发件人是别名地址，回信地址是反向别名地址，
// 对方回信经系统路由回来，真实地址全程不出现。
func (s *OutboundService) Send(ctx context.Context, input SendInput) (*domain.MailboxEntry, error) {
	address := strings.ToLower(strings.TrimSpace(input.FromAliasAddress))
	alias, err := s.store.GetAliasByAddress(address)
	if err != nil {
		if errors.Is(err, storage.ErrAliasNotFound) {
			return nil, ErrAliasNotFound
		}
		return nil, fmt.Errorf("lookup alias: %w", err)
	}
	if !alias.CanRead(input.CallerID) {
		return nil, ErrAliasNotFound
	}
	if !alias.IsActive {
		return nil, ErrAliasInactive
	}
	if !alias.CanSend(input.CallerID) {
		return nil, ErrInsufficientPermissions
	}

	to := strings.ToLower(strings.TrimSpace(input.To))
	if err := checkmail.ValidateFormat(to); err != nil {
		return nil, ErrInvalidRecipient
	}

	ra, err := s.reverse.GetOrCreate(alias, to)
	if err != nil {
		return nil, err
	}

	msg := &relay.Message{
		From:    alias.Address,
		To:      to,
		Subject: input.Subject,
		Text:    input.BodyPlain,
		HTML:    input.BodyHTML,
		ReplyTo: fmt.Sprintf("%s@%s", ra.ReverseID, s.cfg.Mail.Domain),
	}
	transportID, err := s.provider.Send(ctx, msg)
	if err != nil {
		s.log.Error("outbound relay failed",
			zap.String("alias_id", alias.ID),
			zap.String("to", to),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	entry := &domain.MailboxEntry{
		ID:          uuid.NewString(),
		AliasID:     alias.ID,
		Direction:   domain.DirectionSent,
		From:        alias.Address,
		To:          to,
		Subject:     input.Subject,
		BodyPlain:   input.BodyPlain,
		BodyHTML:    input.BodyHTML,
		IsRead:      true,
		ReverseID:   ra.ReverseID,
		ActorUserID: input.CallerID,
		TransportID: transportID,
		ReceivedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveEntry(entry); err != nil {
		return nil, fmt.Errorf("save entry: %w", err)
	}

	s.reverse.RecordOutbound(ra.ReverseID)
	if err := s.store.IncrementAliasSent(alias.ID); err != nil {
		s.log.Warn("failed to increment sent counter", zap.String("alias_id", alias.ID), zap.Error(err))
	}

	if alias.IsCollaborative {
		s.activity.Record(alias.ID, domain.ActivitySent, input.CallerID, map[string]string{
			"to":      to,
			"subject": input.Subject,
			"preview": truncatePreview(input.BodyPlain, sentPreviewLimit),
		})
	}

	return entry, nil
}

// truncatePreview 截断正文预览，超长时以省略号结尾。按字符而非字节截断。
func truncatePreview(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + "..."
}
