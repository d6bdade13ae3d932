package domain

import "time"

// EntryDirection 邮件记录方向
type EntryDirection string

const (
	DirectionReceived EntryDirection = "received"
	DirectionSent     EntryDirection = "sent"
)

// MailboxEntry 表示别名收件箱中的一条邮件记录。
// 入站转发和出站发送各产生一条；正文直接落库，不经过附件文件存储。
type MailboxEntry struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AliasID   string         `json:"aliasId" gorm:"type:varchar(36);index;not null"`
	Direction EntryDirection `json:"direction" gorm:"type:varchar(10);index;not null"`
	From      string         `json:"from" gorm:"column:from_address;type:varchar(255)"`
	To        string         `json:"to" gorm:"column:to_address;type:varchar(255)"`
	Subject   string         `json:"subject" gorm:"type:varchar(500)"`
	BodyPlain string         `json:"bodyPlain" gorm:"type:text"`
	BodyHTML  string         `json:"bodyHtml,omitempty" gorm:"type:text"`

	IsRead        bool       `json:"isRead" gorm:"default:false;index"`
	ReadAt        *time.Time `json:"readAt,omitempty"`
	IsForwarded   bool       `json:"isForwarded" gorm:"default:false"`
	ForwardedAt   *time.Time `json:"forwardedAt,omitempty"`
	IsReplyToSent bool       `json:"isReplyToSent" gorm:"default:false"` // 经反向别名收到的回信
	ReverseID     string     `json:"reverseId,omitempty" gorm:"type:varchar(64);index"`

	ActorUserID string    `json:"actorUserId,omitempty" gorm:"type:varchar(36)"` // 出站记录的实际发信人
	TransportID string    `json:"transportId,omitempty" gorm:"type:varchar(255)"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// EntryFilter 收件箱查询条件
type EntryFilter struct {
	AliasIDs   []string // 限定在这些别名内（调用方已做过访问检查）
	AliasID    string   // 可选：单个别名过滤
	UnreadOnly bool
	Page       int
	PageSize   int
}

// EntryPage 分页查询结果
type EntryPage struct {
	Entries    []MailboxEntry `json:"entries"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}
