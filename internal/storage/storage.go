package storage

import (
	"errors"
	"time"

	"mailveil/backend/internal/domain"
)

var (
	// ErrUserNotFound 用户不存在错误
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists 邮箱地址已被注册错误
	ErrEmailExists = errors.New("email already exists")
	// ErrAliasNotFound 别名不存在错误
	ErrAliasNotFound = errors.New("alias not found")
	// ErrAliasExists 别名地址已存在错误
	ErrAliasExists = errors.New("alias already exists")
	// ErrCollaboratorExists 用户已是协作者错误
	ErrCollaboratorExists = errors.New("collaborator already exists")
	// ErrCollaboratorNotFound 协作者不存在错误
	ErrCollaboratorNotFound = errors.New("collaborator not found")
	// ErrReverseAliasNotFound 反向别名不存在或已停用错误
	ErrReverseAliasNotFound = errors.New("reverse alias not found")
	// ErrReversePairExists (别名, 收件人) 已存在活跃的反向别名映射。
	// SaveReverseAlias 以此向上层暴露唯一约束冲突，用于化解并发创建竞态。
	ErrReversePairExists = errors.New("active reverse alias exists for pair")
	// ErrEntryNotFound 邮件记录不存在错误
	ErrEntryNotFound = errors.New("mailbox entry not found")
)

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error) // 大小写不敏感的精确匹配
	GetUsersByIDs(ids []string) ([]domain.User, error) // 按 ID 集合批量查询
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
}

// AliasRepository 定义别名数据存取操作。
type AliasRepository interface {
	// SaveAlias 创建别名；地址已存在时返回 ErrAliasExists（地址全局唯一）。
	SaveAlias(alias *domain.Alias) error
	GetAlias(id string) (*domain.Alias, error)
	GetAliasByAddress(address string) (*domain.Alias, error)
	ListAccessibleAliases(userID string) ([]domain.Alias, error) // 所有者或协作者
	CountPersonalAliases(ownerID string) (int, error)            // 仅统计非协作别名
	SetAliasActive(aliasID string, active bool) error
	AddCollaborator(c *domain.Collaborator) error
	RemoveCollaborator(aliasID, userID string) error
	IncrementAliasSent(aliasID string) error     // 原子自增
	IncrementAliasReceived(aliasID string) error // 原子自增
}

// ReverseAliasRepository 定义反向别名数据存取操作。
// 所有查询只对活跃映射生效；停用后的映射不再可见。
type ReverseAliasRepository interface {
	// SaveReverseAlias 创建映射；同一 (aliasID, recipientEmail) 已有活跃映射时
	// 返回 ErrReversePairExists，由唯一约束保证并发下不会产生重复映射。
	SaveReverseAlias(ra *domain.ReverseAlias) error
	GetActiveReverseAlias(reverseID string) (*domain.ReverseAlias, error)
	GetActiveReverseAliasByPair(aliasID, recipientEmail string) (*domain.ReverseAlias, error)
	ListReverseAliasesByAliasIDs(aliasIDs []string) ([]domain.ReverseAlias, error) // 按最近使用排序
	DeactivateReverseAlias(reverseID string) error
	IncrementReverseSent(reverseID string) error
	IncrementReverseReceived(reverseID string) error
}

// EntryRepository 定义邮件记录数据存取操作。
type EntryRepository interface {
	SaveEntry(entry *domain.MailboxEntry) error
	GetEntry(id string) (*domain.MailboxEntry, error)
	ListEntries(filter domain.EntryFilter) (*domain.EntryPage, error)
	MarkEntryRead(id string, read bool) error
	MarkEntryForwarded(id string) error
	DeleteEntry(id string) error // 硬删除
}

// ActivityRepository 定义协作动态数据存取操作。只有追加和查询。
type ActivityRepository interface {
	SaveActivity(entry *domain.ActivityEntry) error
	ListActivitiesByAliasIDs(aliasIDs []string, limit int) ([]domain.ActivityEntry, error)
}

// JWTRepository 定义 JWT 黑名单操作。
type JWTRepository interface {
	AddToBlacklist(jti string, ttl time.Duration) error
	IsBlacklisted(jti string) (bool, error)
}

// RateLimitRepository 定义限流计数操作。
type RateLimitRepository interface {
	IncrementRateLimit(key string, window time.Duration) (int64, error)
	GetRateLimit(key string) (int64, error)
}

// Store 聚合主存储的全部数据操作。
type Store interface {
	UserRepository
	AliasRepository
	ReverseAliasRepository
	EntryRepository
	ActivityRepository

	Close() error
	Health() error
}
