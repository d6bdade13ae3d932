package domain

import (
	"errors"
	"regexp"
	"strings"
)

// 别名名称校验相关的错误定义
var (
	ErrAliasNameEmpty    = errors.New("alias name is empty")
	ErrAliasNameTooShort = errors.New("alias name too short (min 2 chars)")
	ErrAliasNameTooLong  = errors.New("alias name too long (max 50 chars)")
	ErrAliasNameInvalid  = errors.New("invalid alias name format")
	ErrAliasNameReserved = errors.New("alias name is reserved")
)

// 别名名称长度限制
const (
	MinAliasNameLength = 2
	MaxAliasNameLength = 50
)

// 别名本地名仅允许字母、数字、点、连字符和下划线
var aliasNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// reservedAliasNames 保留名称，不允许注册为别名
var reservedAliasNames = map[string]struct{}{
	"admin": {}, "administrator": {}, "root": {}, "postmaster": {},
	"webmaster": {}, "hostmaster": {}, "abuse": {}, "noreply": {},
	"no-reply": {}, "support": {}, "info": {}, "contact": {},
	"sales": {}, "marketing": {}, "help": {}, "api": {},
	"www": {}, "mail": {}, "email": {}, "ftp": {},
	"test": {}, "staging": {}, "dev": {},
}

// NormalizeAliasName 规范化别名本地名：去空白并转小写
func NormalizeAliasName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateAliasName 校验规范化后的别名本地名。
// 规则：2-50 个字符，仅限字母数字和 ._-，且不在保留名单内。
func ValidateAliasName(name string) error {
	if name == "" {
		return ErrAliasNameEmpty
	}
	if len(name) < MinAliasNameLength {
		return ErrAliasNameTooShort
	}
	if len(name) > MaxAliasNameLength {
		return ErrAliasNameTooLong
	}
	if !aliasNameRegex.MatchString(name) {
		return ErrAliasNameInvalid
	}
	if _, reserved := reservedAliasNames[name]; reserved {
		return ErrAliasNameReserved
	}
	return nil
}

// IsReservedAliasName 判断名称是否在保留名单内
func IsReservedAliasName(name string) bool {
	_, ok := reservedAliasNames[NormalizeAliasName(name)]
	return ok
}
