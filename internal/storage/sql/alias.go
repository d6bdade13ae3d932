package sql

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
)

// ========== Alias Repository ==========

// SaveAlias 创建别名。地址已存在时返回 ErrAliasExists。
func (s *Store) SaveAlias(alias *domain.Alias) error {
	err := s.gormDB.Omit("Collaborators").Create(alias).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrAliasExists
	}
	return err
}

// GetAlias 根据 ID 获取别名（含协作者列表）
func (s *Store) GetAlias(id string) (*domain.Alias, error) {
	var alias domain.Alias
	err := s.gormDB.Preload("Collaborators").Where("id = ?", id).First(&alias).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAliasNotFound
		}
		return nil, err
	}
	return &alias, nil
}

// GetAliasByAddress 根据完整地址获取别名（含协作者列表）
func (s *Store) GetAliasByAddress(address string) (*domain.Alias, error) {
	var alias domain.Alias
	err := s.gormDB.Preload("Collaborators").Where("address = ?", address).First(&alias).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAliasNotFound
		}
		return nil, err
	}
	return &alias, nil
}

// ListAccessibleAliases 返回用户作为所有者或协作者可访问的全部别名
func (s *Store) ListAccessibleAliases(userID string) ([]domain.Alias, error) {
	var aliases []domain.Alias
	err := s.gormDB.Preload("Collaborators").
		Where("owner_id = ? OR id IN (?)", userID,
			s.gormDB.Model(&domain.Collaborator{}).Select("alias_id").Where("user_id = ?", userID),
		).
		Order("created_at DESC").
		Find(&aliases).Error
	if err != nil {
		return nil, err
	}
	return aliases, nil
}

// CountPersonalAliases 统计用户拥有的非协作别名数量
func (s *Store) CountPersonalAliases(ownerID string) (int, error) {
	var count int64
	err := s.gormDB.Model(&domain.Alias{}).
		Where("owner_id = ? AND is_collaborative = ?", ownerID, false).
		Count(&count).Error
	return int(count), err
}

// SetAliasActive 设置别名启用状态
func (s *Store) SetAliasActive(aliasID string, active bool) error {
	result := s.gormDB.Model(&domain.Alias{}).Where("id = ?", aliasID).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrAliasNotFound
	}
	return nil
}

// AddCollaborator 追加协作者。重复添加返回 ErrCollaboratorExists。
func (s *Store) AddCollaborator(c *domain.Collaborator) error {
	err := s.gormDB.Create(c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrCollaboratorExists
	}
	return err
}

// RemoveCollaborator 移除协作者
func (s *Store) RemoveCollaborator(aliasID, userID string) error {
	result := s.gormDB.Where("alias_id = ? AND user_id = ?", aliasID, userID).
		Delete(&domain.Collaborator{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrCollaboratorNotFound
	}
	return nil
}

// IncrementAliasSent 原子自增别名发信计数
func (s *Store) IncrementAliasSent(aliasID string) error {
	return s.gormDB.Model(&domain.Alias{}).Where("id = ?", aliasID).
		Update("emails_sent", gorm.Expr("emails_sent + 1")).Error
}

// IncrementAliasReceived 原子自增别名收信计数
func (s *Store) IncrementAliasReceived(aliasID string) error {
	return s.gormDB.Model(&domain.Alias{}).Where("id = ?", aliasID).
		Update("emails_received", gorm.Expr("emails_received + 1")).Error
}
