package domain

import "time"

// CollaboratorRole 协作者角色
type CollaboratorRole string

const (
	// RoleOwner 所有者，隐含全部权限（不出现在协作者列表中）
	RoleOwner CollaboratorRole = "owner"
	// RoleMember 成员，可读可发信
	RoleMember CollaboratorRole = "member"
	// RoleViewer 只读成员，不可发信
	RoleViewer CollaboratorRole = "viewer"
	// RoleNone 与别名无任何关系
	RoleNone CollaboratorRole = "none"
)

// ValidCollaboratorRole 判断角色是否为合法的协作者角色
func ValidCollaboratorRole(role CollaboratorRole) bool {
	return role == RoleMember || role == RoleViewer
}

// Collaborator 别名协作者条目
type Collaborator struct {
	ID      string           `json:"-" gorm:"primaryKey;type:varchar(36)"`
	AliasID string           `json:"-" gorm:"type:varchar(36);index:idx_alias_user,unique;not null"`
	UserID  string           `json:"userId" gorm:"type:varchar(36);index:idx_alias_user,unique;not null"`
	Role    CollaboratorRole `json:"role" gorm:"type:varchar(20);not null"`
	AddedAt time.Time        `json:"addedAt"`

	// 展示用身份信息，由服务层补全，不落库
	UserName  string `json:"userName,omitempty" gorm:"-"`
	UserEmail string `json:"userEmail,omitempty" gorm:"-"`
}

// Alias 表示一个别名邮箱。
// 发往别名地址的邮件会转发给所有者以及有权限的协作者，
// 通过别名发出的邮件以别名地址作为可见发件人。
type Alias struct {
	ID              string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID         string         `json:"ownerId" gorm:"type:varchar(36);index;not null"`
	LocalName       string         `json:"localName" gorm:"type:varchar(100)"`
	Address         string         `json:"address" gorm:"type:varchar(255);uniqueIndex;not null"` // localname@domain，创建后不可变
	IsCollaborative bool           `json:"isCollaborative" gorm:"default:false"`
	Collaborators   []Collaborator `json:"collaborators" gorm:"foreignKey:AliasID"`
	IsActive        bool           `json:"isActive" gorm:"default:true"`
	EmailsSent      int            `json:"emailsSent" gorm:"default:0"`
	EmailsReceived  int            `json:"emailsReceived" gorm:"default:0"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`

	// 展示用的所有者身份信息，由服务层补全，不落库
	OwnerName  string `json:"ownerName,omitempty" gorm:"-"`
	OwnerEmail string `json:"ownerEmail,omitempty" gorm:"-"`
}

// RoleOf 返回用户在该别名上的角色
func (a *Alias) RoleOf(userID string) CollaboratorRole {
	if a.OwnerID == userID {
		return RoleOwner
	}
	for _, c := range a.Collaborators {
		if c.UserID == userID {
			return c.Role
		}
	}
	return RoleNone
}

// CanRead 判断用户能否读取该别名（收件箱、反向别名等）
func (a *Alias) CanRead(userID string) bool {
	return a.RoleOf(userID) != RoleNone
}

// CanSend 判断用户能否通过该别名发信。
// viewer 只读，不可发信。
func (a *Alias) CanSend(userID string) bool {
	switch a.RoleOf(userID) {
	case RoleOwner, RoleMember:
		return true
	default:
		return false
	}
}

// HasCollaborator 判断用户是否已在协作者列表中
func (a *Alias) HasCollaborator(userID string) bool {
	for _, c := range a.Collaborators {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// ForwardUserIDs 返回一封入站邮件应转发到的全部用户。
// 所有者始终包含，协作者无论 member 还是 viewer 都会收到转发副本。
func (a *Alias) ForwardUserIDs() []string {
	ids := make([]string, 0, len(a.Collaborators)+1)
	ids = append(ids, a.OwnerID)
	for _, c := range a.Collaborators {
		if c.Role == RoleMember || c.Role == RoleViewer {
			ids = append(ids, c.UserID)
		}
	}
	return ids
}
