package domain

import "time"

// ActivityKind 协作动态类型
type ActivityKind string

const (
	ActivitySent                ActivityKind = "sent"
	ActivityReceived            ActivityKind = "received"
	ActivityReplyReceived       ActivityKind = "reply_received"
	ActivityAddedCollaborator   ActivityKind = "added_collaborator"
	ActivityRemovedCollaborator ActivityKind = "removed_collaborator"
)

// ActivityEntry 协作别名的动态记录，只追加，不修改不删除。
type ActivityEntry struct {
	ID        string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AliasID   string            `json:"aliasId" gorm:"type:varchar(36);index;not null"`
	Kind      ActivityKind      `json:"kind" gorm:"type:varchar(30);not null"`
	UserID    string            `json:"userId" gorm:"type:varchar(36)"` // 触发动作的用户
	Data      map[string]string `json:"data" gorm:"serializer:json"`    // 动作相关的附加信息
	CreatedAt time.Time         `json:"createdAt" gorm:"index"`
}
