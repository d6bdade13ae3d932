package service

import (
	"errors"

	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
)

var (
	// ErrAliasNotFound 别名不存在，或调用者无权访问。
	// 两种情况统一返回同一个错误，避免通过 403/404 差异探测别名是否存在。
	ErrAliasNotFound = errors.New("alias not found or unauthorized")
	// ErrNotOwner 操作仅限别名所有者
	ErrNotOwner = errors.New("only the alias owner can perform this action")
	// ErrInsufficientPermissions 角色权限不足（如 viewer 尝试发信）
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

// AccessService 负责解析调用者与别名之间的关系并做访问判定。
// 所有涉及别名的变更操作都先经过它。
type AccessService struct {
	store storage.Store
}

// NewAccessService 创建访问判定服务。
func NewAccessService(store storage.Store) *AccessService {
	return &AccessService{store: store}
}

// ResolveAccessibleAliases 返回调用者作为所有者或协作者可访问的全部别名。
func (s *AccessService) ResolveAccessibleAliases(userID string) ([]domain.Alias, error) {
	return s.store.ListAccessibleAliases(userID)
}

// AccessibleAliasIDs 返回可访问别名的 ID 集合。
func (s *AccessService) AccessibleAliasIDs(userID string) ([]string, error) {
	aliases, err := s.store.ListAccessibleAliases(userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(aliases))
	for _, a := range aliases {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// GetAccessibleAlias 获取别名并确认调用者至少有读权限。
// 别名不存在和无权访问都返回 ErrAliasNotFound。
func (s *AccessService) GetAccessibleAlias(aliasID, userID string) (*domain.Alias, error) {
	alias, err := s.store.GetAlias(aliasID)
	if err != nil {
		if errors.Is(err, storage.ErrAliasNotFound) {
			return nil, ErrAliasNotFound
		}
		return nil, err
	}
	if !alias.CanRead(userID) {
		return nil, ErrAliasNotFound
	}
	return alias, nil
}

// CheckRole 返回用户在别名上的角色。别名不可访问时返回 ErrAliasNotFound。
func (s *AccessService) CheckRole(aliasID, userID string) (domain.CollaboratorRole, error) {
	alias, err := s.GetAccessibleAlias(aliasID, userID)
	if err != nil {
		return domain.RoleNone, err
	}
	return alias.RoleOf(userID), nil
}

// RequireOwner 获取别名并确认调用者是所有者。
// 有读权限但非所有者时返回 ErrNotOwner；其余情况同 GetAccessibleAlias。
func (s *AccessService) RequireOwner(aliasID, userID string) (*domain.Alias, error) {
	alias, err := s.GetAccessibleAlias(aliasID, userID)
	if err != nil {
		return nil, err
	}
	if alias.OwnerID != userID {
		return nil, ErrNotOwner
	}
	return alias, nil
}
