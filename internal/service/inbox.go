package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
)

// ErrEntryNotFound 邮件记录不存在或不可访问
var ErrEntryNotFound = errors.New("mailbox entry not found")

// InboxService 邮箱记录查询与管理。
// 所有操作都限定在调用者可访问的别名范围内。
type InboxService struct {
	store  storage.Store
	access *AccessService
	log    *zap.Logger
}

// NewInboxService 创建邮箱服务。
func NewInboxService(store storage.Store, access *AccessService, log *zap.Logger) *InboxService {
	return &InboxService{store: store, access: access, log: log}
}

// List 分页返回调用者可见的邮件记录。
// filter.AliasID 非空时限定单个别名（仍需可访问），否则跨全部可访问别名。
func (s *InboxService) List(userID string, filter domain.EntryFilter) (*domain.EntryPage, error) {
	if filter.AliasID != "" {
		if _, err := s.access.GetAccessibleAlias(filter.AliasID, userID); err != nil {
			return nil, err
		}
		filter.AliasIDs = []string{filter.AliasID}
	} else {
		ids, err := s.access.AccessibleAliasIDs(userID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return &domain.EntryPage{Entries: []domain.MailboxEntry{}}, nil
		}
		filter.AliasIDs = ids
	}
	return s.store.ListEntries(filter)
}

// Get 返回单条记录，要求对所属别名有读权限。
func (s *InboxService) Get(entryID, userID string) (*domain.MailboxEntry, error) {
	entry, err := s.loadAccessible(entryID, userID)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// MarkRead 设置记录的已读状态。
func (s *InboxService) MarkRead(entryID, userID string, read bool) error {
	if _, err := s.loadAccessible(entryID, userID); err != nil {
		return err
	}
	if err := s.store.MarkEntryRead(entryID, read); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// Delete 硬删除一条记录。所有者和任何协作者都可删除。
func (s *InboxService) Delete(entryID, userID string) error {
	entry, err := s.loadAccessible(entryID, userID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEntry(entry.ID); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	s.log.Info("mailbox entry deleted",
		zap.String("entry_id", entry.ID),
		zap.String("alias_id", entry.AliasID),
		zap.String("user_id", userID),
	)
	return nil
}

// loadAccessible 加载记录并校验读权限。
// 记录不存在与无权访问统一返回 ErrEntryNotFound。
func (s *InboxService) loadAccessible(entryID, userID string) (*domain.MailboxEntry, error) {
	entry, err := s.store.GetEntry(entryID)
	if err != nil {
		if errors.Is(err, storage.ErrEntryNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	if _, err := s.access.GetAccessibleAlias(entry.AliasID, userID); err != nil {
		if errors.Is(err, ErrAliasNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}
