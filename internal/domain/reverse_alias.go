package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// ReverseAliasPrefix 反向别名地址本地部分的固定前缀。
// 入站路由依赖该前缀区分回信与普通来信，属于线上格式约定，不可变更。
const ReverseAliasPrefix = "ra_"

// ReverseAlias 表示一条反向别名映射。
// 它代替 (别名, 外部收件人) 对出现在往来邮件中，
// 使对方的回信经系统路由回别名，而不会暴露用户的真实地址。
type ReverseAlias struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ReverseID      string     `json:"reverseId" gorm:"type:varchar(64);uniqueIndex;not null"` // 地址本地部分，ra_ 开头
	AliasID        string     `json:"aliasId" gorm:"type:varchar(36);index;not null"`
	RecipientEmail string     `json:"recipientEmail" gorm:"type:varchar(255);index;not null"`
	PairKey        *string    `json:"-" gorm:"type:varchar(300);uniqueIndex"` // 活跃期间为 aliasId|收件人，停用后置空

	AliasAddress   string     `json:"aliasAddress" gorm:"type:varchar(255)"` // 创建时的别名地址快照
	EmailsSent     int        `json:"emailsSent" gorm:"default:0"`
	EmailsReceived int        `json:"emailsReceived" gorm:"default:0"`
	IsActive       bool       `json:"isActive" gorm:"default:true"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastUsedAt     time.Time  `json:"lastUsedAt"`
	DeactivatedAt  *time.Time `json:"deactivatedAt,omitempty"`
}

// NewReverseID 生成一个新的反向别名标识。
// 格式: ra_ + 12 位十六进制随机数 + "_" + base36 秒级时间戳，
// 仅含小写字母、数字和下划线，可安全用作邮件地址本地部分。
func NewReverseID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 失败极为罕见，退化为纯时间戳仍保持格式合法
		return ReverseAliasPrefix + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return ReverseAliasPrefix + hex.EncodeToString(buf) + "_" + strconv.FormatInt(time.Now().Unix(), 36)
}

// MakePairKey 生成 (别名, 收件人) 的唯一键。
// 数据库对该列的唯一索引保证同一对组合至多一条活跃映射；
// 停用时置空，空值不参与唯一性判定。
func MakePairKey(aliasID, recipientEmail string) string {
	return aliasID + "|" + strings.ToLower(recipientEmail)
}

// IsReverseAddress 判断邮件地址的本地部分是否符合反向别名约定
func IsReverseAddress(address string) bool {
	local := address
	if at := strings.Index(address, "@"); at >= 0 {
		local = address[:at]
	}
	return strings.HasPrefix(local, ReverseAliasPrefix)
}

// LocalPart 提取邮件地址的本地部分
func LocalPart(address string) string {
	if at := strings.Index(address, "@"); at >= 0 {
		return address[:at]
	}
	return address
}
