package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"mailveil/backend/internal/auth"
	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/service"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 别名错误
	service.ErrAliasNotFound:      "别名不存在",
	service.ErrNotOwner:           "仅别名所有者可执行此操作",
	service.ErrQuotaExceeded:      "免费套餐最多创建 5 个个人别名，请升级到 Pro",
	service.ErrPlanRequired:       "协作别名需要 Pro 套餐，请先升级",
	service.ErrDuplicateAlias:     "该别名已被占用",
	service.ErrNotCollaborative:   "该别名不是协作别名",
	service.ErrAliasInactive:      "别名已停用",
	domain.ErrAliasNameEmpty:      "别名名称不能为空",
	domain.ErrAliasNameTooShort:   "别名名称至少 2 个字符",
	domain.ErrAliasNameTooLong:    "别名名称最多 50 个字符",
	domain.ErrAliasNameInvalid:    "别名名称只能包含字母、数字、点、下划线和连字符",
	domain.ErrAliasNameReserved:   "该名称为系统保留名称",

	// 协作者错误
	service.ErrUserNotFound:            "用户不存在",
	service.ErrAlreadyCollaborator:     "该用户已是协作者",
	service.ErrCollaboratorNotFound:    "协作者不存在",
	service.ErrInvalidRole:             "协作者角色无效",
	service.ErrSelfCollaborator:        "所有者无需添加为协作者",
	service.ErrInsufficientPermissions: "权限不足",

	// 发信错误
	service.ErrInvalidRecipient: "收件地址格式无效",
	service.ErrTransport:        "邮件发送失败，请稍后重试",

	// 反向别名错误
	service.ErrReverseAliasNotFound: "反向别名不存在",

	// 收件箱错误
	service.ErrEntryNotFound: "邮件不存在",

	// 支付错误
	service.ErrBillingDisabled: "支付功能未启用",
	service.ErrAlreadyPro:      "您已是 Pro 套餐",

	// 认证错误
	auth.ErrInvalidEmail:       "邮箱格式无效",
	auth.ErrEmailExists:        "该邮箱已被注册",
	auth.ErrInvalidCredentials: "邮箱或密码错误",
	auth.ErrUserNotFound:       "用户不存在",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for target, msg := range errorMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return err.Error()
}

// 通用错误消息
const (
	MsgInvalidRequest     = "请求参数格式错误"
	MsgAuthRequired       = "需要登录认证"
	MsgTokenExpired       = "登录已过期，请重新登录"
	MsgTokenInvalid       = "无效的访问令牌"
	MsgInternalError      = "服务器内部错误，请稍后重试"
	MsgAliasCreateFailed  = "创建别名失败"
	MsgAliasListFailed    = "获取别名列表失败"
	MsgSendFailed         = "发送邮件失败"
	MsgInboxListFailed    = "获取邮件列表失败"
	MsgActivityFeedFailed = "获取动态失败"
	MsgCheckoutFailed     = "创建支付会话失败"
)

// respondServiceError 按业务错误类型映射 HTTP 状态码。
// 别名与邮件的"不存在"和"无权访问"统一走 404，不向调用方泄露资源是否存在。
func respondServiceError(c *gin.Context, err error) {
	msg := GetErrorMessage(err)
	switch {
	case errors.Is(err, service.ErrAliasNotFound),
		errors.Is(err, service.ErrEntryNotFound),
		errors.Is(err, service.ErrReverseAliasNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrCollaboratorNotFound):
		NotFound(c, msg)
	case errors.Is(err, service.ErrNotOwner),
		errors.Is(err, service.ErrInsufficientPermissions):
		Forbidden(c, msg)
	case errors.Is(err, service.ErrQuotaExceeded),
		errors.Is(err, service.ErrPlanRequired):
		PaymentRequired(c, msg)
	case errors.Is(err, service.ErrDuplicateAlias),
		errors.Is(err, service.ErrAlreadyCollaborator),
		errors.Is(err, service.ErrAlreadyPro):
		Conflict(c, msg)
	case errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrNotCollaborative),
		errors.Is(err, service.ErrSelfCollaborator),
		errors.Is(err, service.ErrInvalidRecipient),
		errors.Is(err, service.ErrAliasInactive),
		errors.Is(err, service.ErrBillingDisabled),
		errors.Is(err, domain.ErrAliasNameEmpty),
		errors.Is(err, domain.ErrAliasNameTooShort),
		errors.Is(err, domain.ErrAliasNameTooLong),
		errors.Is(err, domain.ErrAliasNameInvalid),
		errors.Is(err, domain.ErrAliasNameReserved):
		BadRequest(c, msg)
	case errors.Is(err, service.ErrTransport):
		c.JSON(502, Response{Code: 502, Msg: msg})
	default:
		InternalError(c, MsgInternalError)
	}
}
