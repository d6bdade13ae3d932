package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mailveil/backend/internal/config"
	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
)

var (
	// ErrQuotaExceeded 免费套餐个人别名数量已达上限
	ErrQuotaExceeded = errors.New("alias limit reached")
	// ErrPlanRequired 协作别名需要 Pro 套餐
	ErrPlanRequired = errors.New("collaborative aliases require the pro plan")
	// ErrDuplicateAlias 别名地址已存在
	ErrDuplicateAlias = errors.New("alias already exists")
	// ErrNotCollaborative 目标别名不是协作别名
	ErrNotCollaborative = errors.New("alias is not collaborative")
	// ErrUserNotFound 目标用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyCollaborator 用户已是协作者
	ErrAlreadyCollaborator = errors.New("user is already a collaborator")
	// ErrCollaboratorNotFound 协作者不在列表中
	ErrCollaboratorNotFound = errors.New("collaborator not found")
	// ErrInvalidRole 协作者角色无效
	ErrInvalidRole = errors.New("invalid collaborator role")
	// ErrSelfCollaborator 所有者不能把自己加为协作者
	ErrSelfCollaborator = errors.New("owner cannot be a collaborator")
)

// AliasService 封装别名的创建、启停和协作者管理。
type AliasService struct {
	store    storage.Store
	access   *AccessService
	activity *ActivityService
	cfg      *config.Config
}

// NewAliasService 创建别名业务服务。
func NewAliasService(store storage.Store, access *AccessService, activity *ActivityService, cfg *config.Config) *AliasService {
	return &AliasService{
		store:    store,
		access:   access,
		activity: activity,
		cfg:      cfg,
	}
}

// CreateAliasInput 定义创建别名的输入。
type CreateAliasInput struct {
	OwnerID         string
	Name            string // 本地名，未规范化
	IsCollaborative bool
}

// Create 创建一个新的别名。
//
// 规则：
//   - 本地名规范化后按格式、长度和保留名单校验；
//   - 协作别名仅限 Pro 套餐创建；
//   - 免费套餐最多 5 个个人别名，协作别名不计入该限额；
//   - 完整地址全局唯一。
func (s *AliasService) Create(input CreateAliasInput) (*domain.Alias, error) {
	owner, err := s.store.GetUserByID(input.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("owner lookup: %w", err)
	}

	name := domain.NormalizeAliasName(input.Name)
	if err := domain.ValidateAliasName(name); err != nil {
		return nil, err
	}

	limits := domain.LimitsFor(owner.Plan)
	if input.IsCollaborative && !limits.Collaborative {
		return nil, ErrPlanRequired
	}
	if !input.IsCollaborative {
		count, err := s.store.CountPersonalAliases(input.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("count aliases: %w", err)
		}
		if !limits.AllowsPersonalAlias(count) {
			return nil, ErrQuotaExceeded
		}
	}

	now := time.Now().UTC()
	alias := &domain.Alias{
		ID:              uuid.NewString(),
		OwnerID:         input.OwnerID,
		LocalName:       name,
		Address:         fmt.Sprintf("%s@%s", name, s.cfg.Mail.Domain),
		IsCollaborative: input.IsCollaborative,
		Collaborators:   []domain.Collaborator{},
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.SaveAlias(alias); err != nil {
		if errors.Is(err, storage.ErrAliasExists) {
			return nil, ErrDuplicateAlias
		}
		return nil, fmt.Errorf("save alias: %w", err)
	}

	alias.OwnerName = owner.Name
	alias.OwnerEmail = owner.Email
	return alias, nil
}

// Toggle 设置别名的启用状态。
// 无论个人还是协作别名，都只有所有者可以切换。
func (s *AliasService) Toggle(aliasID, callerID string, active bool) (*domain.Alias, error) {
	alias, err := s.access.RequireOwner(aliasID, callerID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetAliasActive(alias.ID, active); err != nil {
		return nil, fmt.Errorf("set alias active: %w", err)
	}
	alias.IsActive = active
	return alias, nil
}

// AddCollaborator 把目标用户加入协作者列表。
// 仅所有者可操作，且别名必须是协作别名；目标用户按邮箱精确匹配（大小写不敏感）。
func (s *AliasService) AddCollaborator(aliasID, ownerID, targetEmail string, role domain.CollaboratorRole) (*domain.Alias, error) {
	if !domain.ValidCollaboratorRole(role) {
		return nil, ErrInvalidRole
	}

	alias, err := s.access.RequireOwner(aliasID, ownerID)
	if err != nil {
		return nil, err
	}
	if !alias.IsCollaborative {
		return nil, ErrNotCollaborative
	}

	target, err := s.store.GetUserByEmail(targetEmail)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("target lookup: %w", err)
	}
	if target.ID == alias.OwnerID {
		return nil, ErrSelfCollaborator
	}
	if alias.HasCollaborator(target.ID) {
		return nil, ErrAlreadyCollaborator
	}

	collaborator := &domain.Collaborator{
		ID:      uuid.NewString(),
		AliasID: alias.ID,
		UserID:  target.ID,
		Role:    role,
		AddedAt: time.Now().UTC(),
	}
	if err := s.store.AddCollaborator(collaborator); err != nil {
		if errors.Is(err, storage.ErrCollaboratorExists) {
			return nil, ErrAlreadyCollaborator
		}
		return nil, fmt.Errorf("add collaborator: %w", err)
	}

	s.activity.Record(alias.ID, domain.ActivityAddedCollaborator, ownerID, map[string]string{
		"addedUserId":    target.ID,
		"addedUserEmail": target.Email,
		"role":           string(role),
	})

	return s.getAnnotated(alias.ID)
}

// RemoveCollaborator 把用户从协作者列表移除。仅所有者可操作。
func (s *AliasService) RemoveCollaborator(aliasID, ownerID, collaboratorID string) (*domain.Alias, error) {
	alias, err := s.access.RequireOwner(aliasID, ownerID)
	if err != nil {
		return nil, err
	}
	if !alias.IsCollaborative {
		return nil, ErrNotCollaborative
	}
	if !alias.HasCollaborator(collaboratorID) {
		return nil, ErrCollaboratorNotFound
	}

	removed, err := s.store.GetUserByID(collaboratorID)
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("removed user lookup: %w", err)
	}

	if err := s.store.RemoveCollaborator(alias.ID, collaboratorID); err != nil {
		if errors.Is(err, storage.ErrCollaboratorNotFound) {
			return nil, ErrCollaboratorNotFound
		}
		return nil, fmt.Errorf("remove collaborator: %w", err)
	}

	data := map[string]string{"removedUserId": collaboratorID}
	if removed != nil {
		data["removedUserEmail"] = removed.Email
	}
	s.activity.Record(alias.ID, domain.ActivityRemovedCollaborator, ownerID, data)

	return s.getAnnotated(alias.ID)
}

// ListAccessible 返回调用者可访问的全部别名，并补全所有者和协作者的展示身份。
func (s *AliasService) ListAccessible(userID string) ([]domain.Alias, error) {
	aliases, err := s.access.ResolveAccessibleAliases(userID)
	if err != nil {
		return nil, err
	}

	// 汇总需要解析身份的用户 ID，一次批量查询
	idSet := make(map[string]struct{})
	for _, a := range aliases {
		idSet[a.OwnerID] = struct{}{}
		for _, c := range a.Collaborators {
			idSet[c.UserID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	users, err := s.store.GetUsersByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("resolve identities: %w", err)
	}
	byID := make(map[string]domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for i := range aliases {
		annotateAlias(&aliases[i], byID)
	}
	return aliases, nil
}

// getAnnotated 返回带展示身份的别名详情。
func (s *AliasService) getAnnotated(aliasID string) (*domain.Alias, error) {
	alias, err := s.store.GetAlias(aliasID)
	if err != nil {
		return nil, err
	}

	ids := []string{alias.OwnerID}
	for _, c := range alias.Collaborators {
		ids = append(ids, c.UserID)
	}
	users, err := s.store.GetUsersByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("resolve identities: %w", err)
	}
	byID := make(map[string]domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	annotateAlias(alias, byID)
	return alias, nil
}

func annotateAlias(alias *domain.Alias, users map[string]domain.User) {
	if owner, ok := users[alias.OwnerID]; ok {
		alias.OwnerName = owner.Name
		alias.OwnerEmail = owner.Email
	}
	for i := range alias.Collaborators {
		if u, ok := users[alias.Collaborators[i].UserID]; ok {
			alias.Collaborators[i].UserName = u.Name
			alias.Collaborators[i].UserEmail = u.Email
		}
	}
}
