package domain

import "time"

// PlanTier 用户套餐等级
type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanPro  PlanTier = "pro"
)

// User 表示注册用户的业务实体
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email        string     `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Name         string     `json:"name,omitempty" gorm:"type:varchar(100)"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255)"` // 不返回给前端
	Plan         PlanTier   `json:"plan" gorm:"type:varchar(20);default:'free';index"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// IsPro 判断用户是否为 Pro 套餐
func (u *User) IsPro() bool {
	return u.Plan == PlanPro
}

// PlanLimits 套餐限额
type PlanLimits struct {
	Plan               PlanTier `json:"plan"`
	PersonalAliasLimit int      `json:"personalAliasLimit"` // -1 表示无限制
	Collaborative      bool     `json:"collaborative"`      // 是否允许创建协作别名
}

// LimitsFor 返回指定套餐的限额
func LimitsFor(plan PlanTier) PlanLimits {
	if plan == PlanPro {
		return PlanLimits{
			Plan:               PlanPro,
			PersonalAliasLimit: -1,
			Collaborative:      true,
		}
	}
	return PlanLimits{
		Plan:               PlanFree,
		PersonalAliasLimit: 5,
		Collaborative:      false,
	}
}

// AllowsPersonalAlias 判断当前别名数量下能否再创建一个个人别名
func (l PlanLimits) AllowsPersonalAlias(current int) bool {
	return l.PersonalAliasLimit < 0 || current < l.PersonalAliasLimit
}
