package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
)

// ErrReverseAliasNotFound 反向别名不存在或已停用
var ErrReverseAliasNotFound = errors.New("reverse alias not found")

// ReverseAliasService 维护 (别名, 外部收件人) 到反向别名的映射。
// 同一对组合始终复用同一条活跃映射，保证对方看到稳定的回信地址。
type ReverseAliasService struct {
	store  storage.Store
	access *AccessService
	log    *zap.Logger
}

// NewReverseAliasService 创建反向别名服务。
func NewReverseAliasService(store storage.Store, access *AccessService, log *zap.Logger) *ReverseAliasService {
	return &ReverseAliasService{store: store, access: access, log: log}
}

// GetOrCreate 返回 (aliasID, recipientEmail) 的活跃映射，不存在时创建。
// 幂等：重复调用返回同一条映射。并发创建由存储层唯一约束裁决，
// 冲突方重读已有映射，不会产生重复。
func (s *ReverseAliasService) GetOrCreate(alias *domain.Alias, recipientEmail string) (*domain.ReverseAlias, error) {
	recipientEmail = strings.ToLower(strings.TrimSpace(recipientEmail))

	existing, err := s.store.GetActiveReverseAliasByPair(alias.ID, recipientEmail)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrReverseAliasNotFound) {
		return nil, fmt.Errorf("pair lookup: %w", err)
	}

	now := time.Now().UTC()
	ra := &domain.ReverseAlias{
		ID:             uuid.NewString(),
		ReverseID:      domain.NewReverseID(),
		AliasID:        alias.ID,
		RecipientEmail: recipientEmail,
		AliasAddress:   alias.Address,
		IsActive:       true,
		CreatedAt:      now,
		LastUsedAt:     now,
	}
	err = s.store.SaveReverseAlias(ra)
	if err == nil {
		s.log.Debug("reverse alias created",
			zap.String("reverse_id", ra.ReverseID),
			zap.String("alias_id", alias.ID),
		)
		return ra, nil
	}
	if errors.Is(err, storage.ErrReversePairExists) {
		// 并发创建输掉了竞争，复用赢家的映射
		return s.store.GetActiveReverseAliasByPair(alias.ID, recipientEmail)
	}
	return nil, fmt.Errorf("save reverse alias: %w", err)
}

// Resolve 按 reverseID 查找活跃映射。用于入站回信路由。
func (s *ReverseAliasService) Resolve(reverseID string) (*domain.ReverseAlias, error) {
	ra, err := s.store.GetActiveReverseAlias(reverseID)
	if err != nil {
		if errors.Is(err, storage.ErrReverseAliasNotFound) {
			return nil, ErrReverseAliasNotFound
		}
		return nil, err
	}
	return ra, nil
}

// RecordOutbound 累计出站次数并刷新最近使用时间。
func (s *ReverseAliasService) RecordOutbound(reverseID string) {
	if err := s.store.IncrementReverseSent(reverseID); err != nil {
		s.log.Warn("failed to record outbound use", zap.String("reverse_id", reverseID), zap.Error(err))
	}
}

// RecordInbound 累计回信次数并刷新最近使用时间。
func (s *ReverseAliasService) RecordInbound(reverseID string) {
	if err := s.store.IncrementReverseReceived(reverseID); err != nil {
		s.log.Warn("failed to record inbound use", zap.String("reverse_id", reverseID), zap.Error(err))
	}
}

// Deactivate 停用一条映射。调用者需对所属别名有读权限。
// 停用后该收件人的回信将被静默丢弃；之后再次发信会生成新的映射。
func (s *ReverseAliasService) Deactivate(reverseID, callerID string) error {
	ra, err := s.store.GetActiveReverseAlias(reverseID)
	if err != nil {
		if errors.Is(err, storage.ErrReverseAliasNotFound) {
			return ErrReverseAliasNotFound
		}
		return err
	}
	if _, err := s.access.GetAccessibleAlias(ra.AliasID, callerID); err != nil {
		return err
	}
	return s.store.DeactivateReverseAlias(reverseID)
}

// ListAccessible 返回调用者可访问别名下的全部反向别名，按最近使用排序。
func (s *ReverseAliasService) ListAccessible(userID string) ([]domain.ReverseAlias, error) {
	ids, err := s.access.AccessibleAliasIDs(userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.ReverseAlias{}, nil
	}
	return s.store.ListReverseAliasesByAliasIDs(ids)
}
