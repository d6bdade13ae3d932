package sql

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
)

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	err := s.gormDB.Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrEmailExists
	}
	return err
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	var user domain.User
	err := s.gormDB.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail 根据邮箱获取用户（大小写不敏感）
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	var user domain.User
	err := s.gormDB.Where("email = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUsersByIDs 按 ID 集合批量获取用户
func (s *Store) GetUsersByIDs(ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	var users []domain.User
	if err := s.gormDB.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()
	result := s.gormDB.Model(&domain.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"name":          user.Name,
		"password_hash": user.PasswordHash,
		"plan":          user.Plan,
		"updated_at":    user.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin 更新最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	return s.gormDB.Model(&domain.User{}).Where("id = ?", userID).
		Update("last_login_at", time.Now().UTC()).Error
}
