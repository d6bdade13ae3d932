package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
)

// Store 使用内存保存全部数据，主要用于开发验证和服务层测试。
// 地址唯一性和 (别名, 收件人) 对的唯一性在写入路径上检查，
// 与 SQL 存储的唯一索引行为保持一致。
type Store struct {
	mu            sync.RWMutex
	users         map[string]*domain.User         // userID -> user
	byEmail       map[string]string               // 小写邮箱 -> userID
	aliases       map[string]*domain.Alias        // aliasID -> alias
	byAddress     map[string]string               // 别名地址 -> aliasID
	reverses      map[string]*domain.ReverseAlias // reverseID -> 反向别名
	byPair        map[string]string               // "aliasID|收件人" -> reverseID（仅活跃映射）
	entries       map[string]*domain.MailboxEntry // entryID -> 邮件记录
	activities    []*domain.ActivityEntry
	blacklist     map[string]time.Time // jti -> 过期时间
	rateLimits    map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	count     int64
	expiresAt time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*domain.User),
		byEmail:    make(map[string]string),
		aliases:    make(map[string]*domain.Alias),
		byAddress:  make(map[string]string),
		reverses:   make(map[string]*domain.ReverseAlias),
		byPair:     make(map[string]string),
		entries:    make(map[string]*domain.MailboxEntry),
		activities: make([]*domain.ActivityEntry, 0),
		blacklist:  make(map[string]time.Time),
		rateLimits: make(map[string]*rateLimitEntry),
	}
}

func pairKey(aliasID, recipient string) string {
	return aliasID + "|" + strings.ToLower(strings.TrimSpace(recipient))
}

// ========== 用户 ==========

// CreateUser 创建用户。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := s.byEmail[key]; exists {
		return storage.ErrEmailExists
	}
	s.users[user.ID] = user
	s.byEmail[key] = user.ID
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// GetUserByEmail 根据邮箱获取用户，大小写不敏感。
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

// GetUsersByIDs 按 ID 集合批量获取用户，忽略不存在的 ID。
func (s *Store) GetUsersByIDs(ids []string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			result = append(result, *u)
		}
	}
	return result, nil
}

// UpdateUser 更新用户信息。
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.users[user.ID]
	if !ok {
		return storage.ErrUserNotFound
	}
	if !strings.EqualFold(old.Email, user.Email) {
		delete(s.byEmail, strings.ToLower(old.Email))
		s.byEmail[strings.ToLower(user.Email)] = user.ID
	}
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = user
	return nil
}

// UpdateLastLogin 记录用户最近登录时间。
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	now := time.Now().UTC()
	user.LastLoginAt = &now
	return nil
}

// ========== 别名 ==========

// SaveAlias 创建别名，地址全局唯一。
func (s *Store) SaveAlias(alias *domain.Alias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAddress[alias.Address]; exists {
		return storage.ErrAliasExists
	}
	cp := cloneAlias(alias)
	s.aliases[alias.ID] = cp
	s.byAddress[alias.Address] = alias.ID
	return nil
}

// GetAlias 根据 ID 获取别名。
func (s *Store) GetAlias(id string) (*domain.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alias, ok := s.aliases[id]
	if !ok {
		return nil, storage.ErrAliasNotFound
	}
	return cloneAlias(alias), nil
}

// GetAliasByAddress 根据完整地址获取别名，大小写不敏感。
func (s *Store) GetAliasByAddress(address string) (*domain.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddress[strings.ToLower(strings.TrimSpace(address))]
	if !ok {
		return nil, storage.ErrAliasNotFound
	}
	return cloneAlias(s.aliases[id]), nil
}

// ListAccessibleAliases 返回用户作为所有者或协作者可访问的全部别名。
func (s *Store) ListAccessibleAliases(userID string) ([]domain.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Alias, 0)
	for _, alias := range s.aliases {
		if alias.OwnerID == userID || alias.HasCollaborator(userID) {
			result = append(result, *cloneAlias(alias))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// CountPersonalAliases 统计用户拥有的非协作别名数量。
func (s *Store) CountPersonalAliases(ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, alias := range s.aliases {
		if alias.OwnerID == ownerID && !alias.IsCollaborative {
			count++
		}
	}
	return count, nil
}

// SetAliasActive 设置别名启用状态。
func (s *Store) SetAliasActive(aliasID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alias, ok := s.aliases[aliasID]
	if !ok {
		return storage.ErrAliasNotFound
	}
	alias.IsActive = active
	alias.UpdatedAt = time.Now().UTC()
	return nil
}

// AddCollaborator 添加协作者，同一用户不可重复。
func (s *Store) AddCollaborator(c *domain.Collaborator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alias, ok := s.aliases[c.AliasID]
	if !ok {
		return storage.ErrAliasNotFound
	}
	if alias.HasCollaborator(c.UserID) {
		return storage.ErrCollaboratorExists
	}
	alias.Collaborators = append(alias.Collaborators, *c)
	alias.UpdatedAt = time.Now().UTC()
	return nil
}

// RemoveCollaborator 移除协作者。
func (s *Store) RemoveCollaborator(aliasID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alias, ok := s.aliases[aliasID]
	if !ok {
		return storage.ErrAliasNotFound
	}
	for i, c := range alias.Collaborators {
		if c.UserID == userID {
			alias.Collaborators = append(alias.Collaborators[:i], alias.Collaborators[i+1:]...)
			alias.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return storage.ErrCollaboratorNotFound
}

// IncrementAliasSent 别名发信计数加一。
func (s *Store) IncrementAliasSent(aliasID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alias, ok := s.aliases[aliasID]
	if !ok {
		return storage.ErrAliasNotFound
	}
	alias.EmailsSent++
	return nil
}

// IncrementAliasReceived 别名收信计数加一。
func (s *Store) IncrementAliasReceived(aliasID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alias, ok := s.aliases[aliasID]
	if !ok {
		return storage.ErrAliasNotFound
	}
	alias.EmailsReceived++
	return nil
}

func cloneAlias(a *domain.Alias) *domain.Alias {
	cp := *a
	cp.Collaborators = make([]domain.Collaborator, len(a.Collaborators))
	copy(cp.Collaborators, a.Collaborators)
	return &cp
}

// ========== 反向别名 ==========

// SaveReverseAlias 创建反向别名映射。
// 同一 (别名, 收件人) 对已有活跃映射时返回 ErrReversePairExists，
// 并发双写时后到者据此回退为读取既有映射。
func (s *Store) SaveReverseAlias(ra *domain.ReverseAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(ra.AliasID, ra.RecipientEmail)
	if _, exists := s.byPair[key]; exists {
		return storage.ErrReversePairExists
	}
	cp := *ra
	s.reverses[ra.ReverseID] = &cp
	s.byPair[key] = ra.ReverseID
	return nil
}

// GetActiveReverseAlias 根据 reverseID 获取活跃映射。
func (s *Store) GetActiveReverseAlias(reverseID string) (*domain.ReverseAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ra, ok := s.reverses[reverseID]
	if !ok || !ra.IsActive {
		return nil, storage.ErrReverseAliasNotFound
	}
	cp := *ra
	return &cp, nil
}

// GetActiveReverseAliasByPair 按 (别名, 收件人) 查询活跃映射。
func (s *Store) GetActiveReverseAliasByPair(aliasID, recipientEmail string) (*domain.ReverseAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reverseID, ok := s.byPair[pairKey(aliasID, recipientEmail)]
	if !ok {
		return nil, storage.ErrReverseAliasNotFound
	}
	cp := *s.reverses[reverseID]
	return &cp, nil
}

// ListReverseAliasesByAliasIDs 返回这些别名下的全部活跃映射，按最近使用倒序。
func (s *Store) ListReverseAliasesByAliasIDs(aliasIDs []string) ([]domain.ReverseAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idSet := make(map[string]struct{}, len(aliasIDs))
	for _, id := range aliasIDs {
		idSet[id] = struct{}{}
	}

	result := make([]domain.ReverseAlias, 0)
	for _, ra := range s.reverses {
		if !ra.IsActive {
			continue
		}
		if _, ok := idSet[ra.AliasID]; ok {
			result = append(result, *ra)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastUsedAt.After(result[j].LastUsedAt)
	})
	return result, nil
}

// DeactivateReverseAlias 停用映射并释放 (别名, 收件人) 槽位。
// 停用不可逆，之后对同一收件人的发送会铸造新的标识。
func (s *Store) DeactivateReverseAlias(reverseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, ok := s.reverses[reverseID]
	if !ok || !ra.IsActive {
		return storage.ErrReverseAliasNotFound
	}
	now := time.Now().UTC()
	ra.IsActive = false
	ra.DeactivatedAt = &now
	delete(s.byPair, pairKey(ra.AliasID, ra.RecipientEmail))
	return nil
}

// IncrementReverseSent 反向别名发信计数加一并刷新使用时间。
func (s *Store) IncrementReverseSent(reverseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, ok := s.reverses[reverseID]
	if !ok {
		return storage.ErrReverseAliasNotFound
	}
	ra.EmailsSent++
	ra.LastUsedAt = time.Now().UTC()
	return nil
}

// IncrementReverseReceived 反向别名收信计数加一并刷新使用时间。
func (s *Store) IncrementReverseReceived(reverseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, ok := s.reverses[reverseID]
	if !ok {
		return storage.ErrReverseAliasNotFound
	}
	ra.EmailsReceived++
	ra.LastUsedAt = time.Now().UTC()
	return nil
}

// ========== 邮件记录 ==========

// SaveEntry 保存邮件记录。
func (s *Store) SaveEntry(entry *domain.MailboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.entries[entry.ID] = &cp
	return nil
}

// GetEntry 获取单条邮件记录。
func (s *Store) GetEntry(id string) (*domain.MailboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrEntryNotFound
	}
	cp := *entry
	return &cp, nil
}

// ListEntries 按条件分页查询邮件记录，按接收时间倒序。
func (s *Store) ListEntries(filter domain.EntryFilter) (*domain.EntryPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idSet := make(map[string]struct{}, len(filter.AliasIDs))
	for _, id := range filter.AliasIDs {
		idSet[id] = struct{}{}
	}

	matched := make([]domain.MailboxEntry, 0)
	for _, entry := range s.entries {
		if _, ok := idSet[entry.AliasID]; !ok {
			continue
		}
		if filter.AliasID != "" && entry.AliasID != filter.AliasID {
			continue
		}
		if filter.UnreadOnly && entry.IsRead {
			continue
		}
		matched = append(matched, *entry)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ReceivedAt.After(matched[j].ReceivedAt)
	})

	return paginate(matched, filter.Page, filter.PageSize), nil
}

func paginate(entries []domain.MailboxEntry, page, pageSize int) *domain.EntryPage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	total := len(entries)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &domain.EntryPage{
		Entries:    entries[start:end],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// MarkEntryRead 设置已读标记。
func (s *Store) MarkEntryRead(id string, read bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return storage.ErrEntryNotFound
	}
	entry.IsRead = read
	if read {
		now := time.Now().UTC()
		entry.ReadAt = &now
	} else {
		entry.ReadAt = nil
	}
	return nil
}

// MarkEntryForwarded 标记记录已完成转发。
func (s *Store) MarkEntryForwarded(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return storage.ErrEntryNotFound
	}
	now := time.Now().UTC()
	entry.IsForwarded = true
	entry.ForwardedAt = &now
	return nil
}

// DeleteEntry 硬删除邮件记录。
func (s *Store) DeleteEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return storage.ErrEntryNotFound
	}
	delete(s.entries, id)
	return nil
}

// ========== 协作动态 ==========

// SaveActivity 追加一条动态记录。
func (s *Store) SaveActivity(entry *domain.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.activities = append(s.activities, &cp)
	return nil
}

// ListActivitiesByAliasIDs 返回这些别名下最新的动态，按时间倒序。
func (s *Store) ListActivitiesByAliasIDs(aliasIDs []string, limit int) ([]domain.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idSet := make(map[string]struct{}, len(aliasIDs))
	for _, id := range aliasIDs {
		idSet[id] = struct{}{}
	}

	result := make([]domain.ActivityEntry, 0)
	for _, a := range s.activities {
		if _, ok := idSet[a.AliasID]; ok {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ========== JWT 黑名单与限流 ==========

// AddToBlacklist 将 jti 加入黑名单。
func (s *Store) AddToBlacklist(jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blacklist[jti] = time.Now().Add(ttl)
	return nil
}

// IsBlacklisted 判断 jti 是否在黑名单内。
func (s *Store) IsBlacklisted(jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.blacklist[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		delete(s.blacklist, jti)
		return false, nil
	}
	return true, nil
}

// IncrementRateLimit 窗口计数加一，窗口过期后重新计数。
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		s.rateLimits[key] = entry
	}
	entry.count++
	return entry.count, nil
}

// GetRateLimit 返回当前窗口计数。
func (s *Store) GetRateLimit(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rateLimits[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return 0, nil
	}
	return entry.count, nil
}

// Close 关闭存储，内存实现为空操作。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查，内存实现始终健康。
func (s *Store) Health() error {
	return nil
}
