package sql

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
)

// ========== ReverseAlias Repository ==========

// SaveReverseAlias 创建反向别名映射。
// pair_key 列的唯一索引保证同一 (别名, 收件人) 至多一条活跃映射，
// 并发创建时输家收到 ErrReversePairExists。
func (s *Store) SaveReverseAlias(ra *domain.ReverseAlias) error {
	key := domain.MakePairKey(ra.AliasID, ra.RecipientEmail)
	ra.PairKey = &key
	err := s.gormDB.Create(ra).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrReversePairExists
	}
	return err
}

// GetActiveReverseAlias 根据 reverseID 获取活跃映射
func (s *Store) GetActiveReverseAlias(reverseID string) (*domain.ReverseAlias, error) {
	var ra domain.ReverseAlias
	err := s.gormDB.Where("reverse_id = ? AND is_active = ?", reverseID, true).First(&ra).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrReverseAliasNotFound
		}
		return nil, err
	}
	return &ra, nil
}

// GetActiveReverseAliasByPair 根据 (别名, 收件人) 获取活跃映射
func (s *Store) GetActiveReverseAliasByPair(aliasID, recipientEmail string) (*domain.ReverseAlias, error) {
	var ra domain.ReverseAlias
	key := domain.MakePairKey(aliasID, recipientEmail)
	err := s.gormDB.Where("pair_key = ?", key).First(&ra).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrReverseAliasNotFound
		}
		return nil, err
	}
	return &ra, nil
}

// ListReverseAliasesByAliasIDs 返回指定别名下的全部映射，按最近使用倒序
func (s *Store) ListReverseAliasesByAliasIDs(aliasIDs []string) ([]domain.ReverseAlias, error) {
	if len(aliasIDs) == 0 {
		return []domain.ReverseAlias{}, nil
	}
	var ras []domain.ReverseAlias
	err := s.gormDB.Where("alias_id IN ?", aliasIDs).
		Order("last_used_at DESC").
		Find(&ras).Error
	if err != nil {
		return nil, err
	}
	return ras, nil
}

// DeactivateReverseAlias 停用映射并释放唯一键占位
func (s *Store) DeactivateReverseAlias(reverseID string) error {
	now := time.Now().UTC()
	result := s.gormDB.Model(&domain.ReverseAlias{}).
		Where("reverse_id = ? AND is_active = ?", reverseID, true).
		Updates(map[string]interface{}{
			"is_active":      false,
			"deactivated_at": now,
			"pair_key":       nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrReverseAliasNotFound
	}
	return nil
}

// IncrementReverseSent 原子自增出站计数并刷新最近使用时间
func (s *Store) IncrementReverseSent(reverseID string) error {
	return s.gormDB.Model(&domain.ReverseAlias{}).Where("reverse_id = ?", reverseID).
		Updates(map[string]interface{}{
			"emails_sent":  gorm.Expr("emails_sent + 1"),
			"last_used_at": time.Now().UTC(),
		}).Error
}

// IncrementReverseReceived 原子自增回信计数并刷新最近使用时间
func (s *Store) IncrementReverseReceived(reverseID string) error {
	return s.gormDB.Model(&domain.ReverseAlias{}).Where("reverse_id = ?", reverseID).
		Updates(map[string]interface{}{
			"emails_received": gorm.Expr("emails_received + 1"),
			"last_used_at":    time.Now().UTC(),
		}).Error
}

// ========== Entry Repository ==========

// SaveEntry 保存邮件记录
func (s *Store) SaveEntry(entry *domain.MailboxEntry) error {
	return s.gormDB.Create(entry).Error
}

// GetEntry 根据 ID 获取邮件记录
func (s *Store) GetEntry(id string) (*domain.MailboxEntry, error) {
	var entry domain.MailboxEntry
	err := s.gormDB.Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// ListEntries 分页查询邮件记录，按接收时间倒序
func (s *Store) ListEntries(filter domain.EntryFilter) (*domain.EntryPage, error) {
	query := s.gormDB.Model(&domain.MailboxEntry{}).Where("alias_id IN ?", filter.AliasIDs)
	if filter.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var entries []domain.MailboxEntry
	err := query.Order("received_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &domain.EntryPage{
		Entries:    entries,
		Total:      int(total),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// MarkEntryRead 设置已读状态
func (s *Store) MarkEntryRead(id string, read bool) error {
	updates := map[string]interface{}{"is_read": read}
	if read {
		updates["read_at"] = time.Now().UTC()
	} else {
		updates["read_at"] = nil
	}
	result := s.gormDB.Model(&domain.MailboxEntry{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrEntryNotFound
	}
	return nil
}

// MarkEntryForwarded 标记已完成转发
func (s *Store) MarkEntryForwarded(id string) error {
	result := s.gormDB.Model(&domain.MailboxEntry{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_forwarded": true,
			"forwarded_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrEntryNotFound
	}
	return nil
}

// DeleteEntry 硬删除邮件记录
func (s *Store) DeleteEntry(id string) error {
	result := s.gormDB.Where("id = ?", id).Delete(&domain.MailboxEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrEntryNotFound
	}
	return nil
}

// ========== Activity Repository ==========

// SaveActivity 追加一条协作动态
func (s *Store) SaveActivity(entry *domain.ActivityEntry) error {
	return s.gormDB.Create(entry).Error
}

// ListActivitiesByAliasIDs 查询指定别名下最新的动态，按时间倒序
func (s *Store) ListActivitiesByAliasIDs(aliasIDs []string, limit int) ([]domain.ActivityEntry, error) {
	if len(aliasIDs) == 0 {
		return []domain.ActivityEntry{}, nil
	}
	var acts []domain.ActivityEntry
	err := s.gormDB.Where("alias_id IN ?", aliasIDs).
		Order("created_at DESC").
		Limit(limit).
		Find(&acts).Error
	if err != nil {
		return nil, err
	}
	return acts, nil
}
