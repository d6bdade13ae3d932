package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailveil/backend/internal/config"
	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/relay"
	"mailveil/backend/internal/storage"
)

// maxForwardConcurrency 单条入站邮件转发扇出的并发上限
const maxForwardConcurrency = 8

// Notifier 向在线用户推送新邮件通知。实现为 WebSocket Hub。
type Notifier interface {
	NotifyNewMail(userIDs []string, entry *domain.MailboxEntry)
}

// MetricsRecorder 记录入站处理指标。
type MetricsRecorder interface {
	RecordInbound(path, outcome string)
	RecordForward(success bool)
}

// InboundMessage 是入站 webhook 解码后的邮件元组。
// 载荷的内容类型解析在传输层完成，这里只消费解码结果。
type InboundMessage struct {
	Recipient string
	Sender    string
	Subject   string
	BodyPlain string
	BodyHTML  string
	MessageID string
}

// InboundService 入站路由：把一封入站邮件归类为回信或普通来信，
// 落库并向所有者和协作者的真实邮箱转发副本。
//
// 丢弃策略：收件地址无法匹配、别名或映射已停用时，静默接受并丢弃，
// 不向上游返回错误，避免在中继层产生退信风暴。
type InboundService struct {
	store    storage.Store
	access   *AccessService
	activity *ActivityService
	reverse  *ReverseAliasService
	provider relay.Provider
	cfg      *config.Config
	log      *zap.Logger
	notifier Notifier
	metrics  MetricsRecorder
}

// NewInboundService 创建入站路由服务。notifier 和 metrics 可为 nil。
func NewInboundService(
	store storage.Store,
	access *AccessService,
	activity *ActivityService,
	reverse *ReverseAliasService,
	provider relay.Provider,
	cfg *config.Config,
	log *zap.Logger,
	notifier Notifier,
	metrics MetricsRecorder,
) *InboundService {
	return &InboundService{
		store:    store,
		access:   access,
		activity: activity,
		reverse:  reverse,
		provider: provider,
		cfg:      cfg,
		log:      log,
		notifier: notifier,
		metrics:  metrics,
	}
}

// Process 处理一封入站邮件。按收件地址本地部分分类：
// ra_ 前缀走回信路径，否则走普通来信路径。
// 只有内部持久化故障才返回错误；路由不中一律静默成功。
func (s *InboundService) Process(ctx context.Context, msg InboundMessage) error {
	recipient := strings.ToLower(strings.TrimSpace(msg.Recipient))
	if recipient == "" {
		s.record("invalid", "dropped")
		return nil
	}

	if domain.IsReverseAddress(recipient) {
		return s.processReply(ctx, recipient, msg)
	}
	return s.processFresh(ctx, recipient, msg)
}

// processReply 处理发往反向别名的回信。
func (s *InboundService) processReply(ctx context.Context, recipient string, msg InboundMessage) error {
	reverseID := domain.LocalPart(recipient)

	ra, err := s.reverse.Resolve(reverseID)
	if err != nil {
		if errors.Is(err, ErrReverseAliasNotFound) {
			s.log.Debug("reply to unknown reverse alias dropped", zap.String("reverse_id", reverseID))
			s.record("reply", "dropped")
			return nil
		}
		return fmt.Errorf("resolve reverse alias: %w", err)
	}

	alias, err := s.store.GetAlias(ra.AliasID)
	if err != nil {
		if errors.Is(err, storage.ErrAliasNotFound) {
			s.record("reply", "dropped")
			return nil
		}
		return fmt.Errorf("load alias: %w", err)
	}
	if !alias.IsActive {
		s.log.Debug("reply to inactive alias dropped", zap.String("alias_id", alias.ID))
		s.record("reply", "dropped")
		return nil
	}

	entry := &domain.MailboxEntry{
		ID:            uuid.NewString(),
		AliasID:       alias.ID,
		Direction:     domain.DirectionReceived,
		From:          msg.Sender,
		To:            recipient,
		Subject:       msg.Subject,
		BodyPlain:     msg.BodyPlain,
		BodyHTML:      msg.BodyHTML,
		IsReplyToSent: true,
		ReverseID:     ra.ReverseID,
		TransportID:   msg.MessageID,
		ReceivedAt:    time.Now().UTC(),
	}
	if err := s.store.SaveEntry(entry); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}

	s.fanOut(ctx, alias, entry)

	if err := s.store.MarkEntryForwarded(entry.ID); err != nil {
		s.log.Warn("failed to mark entry forwarded", zap.String("entry_id", entry.ID), zap.Error(err))
	}
	// 回信只累计反向别名的计数，别名的 received 计数留给普通来信
	s.reverse.RecordInbound(ra.ReverseID)

	if alias.IsCollaborative {
		s.activity.Record(alias.ID, domain.ActivityReplyReceived, "", map[string]string{
			"from":    msg.Sender,
			"subject": msg.Subject,
		})
	}

	s.record("reply", "delivered")
	return nil
}

// processFresh 处理发往别名地址的普通来信。
func (s *InboundService) processFresh(ctx context.Context, recipient string, msg InboundMessage) error {
	alias, err := s.store.GetAliasByAddress(recipient)
	if err != nil {
		if errors.Is(err, storage.ErrAliasNotFound) {
			s.log.Debug("mail to unknown alias dropped", zap.String("recipient", recipient))
			s.record("fresh", "dropped")
			return nil
		}
		return fmt.Errorf("lookup alias: %w", err)
	}
	if !alias.IsActive {
		s.log.Debug("mail to inactive alias dropped", zap.String("alias_id", alias.ID))
		s.record("fresh", "dropped")
		return nil
	}

	entry := &domain.MailboxEntry{
		ID:          uuid.NewString(),
		AliasID:     alias.ID,
		Direction:   domain.DirectionReceived,
		From:        msg.Sender,
		To:          recipient,
		Subject:     msg.Subject,
		BodyPlain:   msg.BodyPlain,
		BodyHTML:    msg.BodyHTML,
		TransportID: msg.MessageID,
		ReceivedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveEntry(entry); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}

	s.fanOut(ctx, alias, entry)

	if err := s.store.MarkEntryForwarded(entry.ID); err != nil {
		s.log.Warn("failed to mark entry forwarded", zap.String("entry_id", entry.ID), zap.Error(err))
	}
	if err := s.store.IncrementAliasReceived(alias.ID); err != nil {
		s.log.Warn("failed to increment received counter", zap.String("alias_id", alias.ID), zap.Error(err))
	}

	if alias.IsCollaborative {
		s.activity.Record(alias.ID, domain.ActivityReceived, "", map[string]string{
			"from":    msg.Sender,
			"subject": msg.Subject,
		})
	}

	s.record("fresh", "delivered")
	return nil
}

// fanOut 并发地把转发副本投递给所有者和全部协作者的真实邮箱。
// 尽力而为：单个收件人失败只记日志，不影响其它投递，
// 且所有投递结束后整体流程照常进入收尾。
func (s *InboundService) fanOut(ctx context.Context, alias *domain.Alias, entry *domain.MailboxEntry) {
	userIDs := alias.ForwardUserIDs()
	users, err := s.store.GetUsersByIDs(userIDs)
	if err != nil {
		s.log.Error("failed to resolve forward recipients",
			zap.String("alias_id", alias.ID), zap.Error(err))
		return
	}

	forward := s.buildForwardCopy(alias, entry)

	var (
		mu        sync.Mutex
		delivered int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxForwardConcurrency)
	for _, u := range users {
		msg := *forward
		msg.To = u.Email
		g.Go(func() error {
			if _, err := s.provider.Send(gctx, &msg); err != nil {
				s.log.Warn("forward delivery failed",
					zap.String("alias_id", alias.ID),
					zap.String("recipient", msg.To),
					zap.Error(err),
				)
				if s.metrics != nil {
					s.metrics.RecordForward(false)
				}
				return nil // 失败不取消其它投递
			}
			mu.Lock()
			delivered++
			mu.Unlock()
			if s.metrics != nil {
				s.metrics.RecordForward(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("inbound fan-out settled",
		zap.String("alias_id", alias.ID),
		zap.String("entry_id", entry.ID),
		zap.Int("recipients", len(users)),
		zap.Int("delivered", delivered),
	)

	if s.notifier != nil {
		s.notifier.NotifyNewMail(userIDs, entry)
	}
}

// buildForwardCopy 组装转发副本。
// Reply-To 重写为别名地址本身，后续回复继续经别名路由，
// 不会在反向别名上层层嵌套。
func (s *InboundService) buildForwardCopy(alias *domain.Alias, entry *domain.MailboxEntry) *relay.Message {
	return &relay.Message{
		From:    fmt.Sprintf("%s <%s@%s>", alias.Address, s.cfg.Mail.ForwardSender, s.cfg.Mail.Domain),
		Subject: fmt.Sprintf("[%s] %s", alias.LocalName, entry.Subject),
		Text:    entry.BodyPlain,
		HTML:    entry.BodyHTML,
		ReplyTo: alias.Address,
	}
}

func (s *InboundService) record(path, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordInbound(path, outcome)
	}
}
