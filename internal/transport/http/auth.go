package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailveil/backend/internal/auth"
	jwtpkg "mailveil/backend/internal/auth/jwt"
	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/monitoring"
	"mailveil/backend/internal/storage"
)

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	authService  *auth.Service
	jwtManager   *jwtpkg.Manager
	blacklist    storage.JWTRepository // 注销令牌黑名单
	accessExpiry time.Duration
	metrics      *monitoring.Metrics // 可为 nil
	log          *zap.Logger
}

// NewAuthHandler 创建认证处理器实例
func NewAuthHandler(authService *auth.Service, jwtManager *jwtpkg.Manager, blacklist storage.JWTRepository, accessExpiry time.Duration, metrics *monitoring.Metrics, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		jwtManager:   jwtManager,
		blacklist:    blacklist,
		accessExpiry: accessExpiry,
		metrics:      metrics,
		log:          log,
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type authResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Plan  string `json:"plan"`
}

func toUserResponse(user *domain.User) userResponse {
	return userResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Plan:  string(user.Plan),
	}
}

// Register 处理用户注册请求
// @Summary 用户注册
// @Description 创建新用户账户，返回用户信息和认证令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body registerRequest true "注册信息"
// @Success 201 {object} authResponse "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "邮箱已存在"
// @Router /v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Register(auth.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		switch err {
		case auth.ErrInvalidEmail:
			BadRequest(c, GetErrorMessage(err))
		case auth.ErrInvalidPassword:
			BadRequest(c, err.Error())
		case auth.ErrEmailExists:
			Conflict(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to register user", zap.Error(err))
			InternalError(c, "注册失败，请稍后重试")
		}
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, user.Email, string(user.Plan))
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, "生成令牌失败")
		return
	}

	if h.metrics != nil {
		h.metrics.UsersRegistered.Inc()
	}
	h.log.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
	)

	Created(c, authResponse{
		User:         toUserResponse(user),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Login 处理用户登录请求
// @Summary 用户登录
// @Description 使用邮箱和密码进行身份验证，成功后返回认证令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录凭证"
// @Success 200 {object} authResponse "登录成功"
// @Failure 401 {object} Response "邮箱或密码错误"
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Login(auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			Unauthorized(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to login", zap.Error(err))
			InternalError(c, "登录失败，请稍后重试")
		}
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, user.Email, string(user.Plan))
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, "生成令牌失败")
		return
	}

	h.log.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
	)

	Success(c, authResponse{
		User:         toUserResponse(user),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Refresh 刷新访问令牌
// @Summary 刷新访问令牌
// @Description 使用刷新令牌获取新的访问令牌，避免重新登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body refreshRequest true "包含刷新令牌的请求"
// @Success 200 {object} object{accessToken=string,expiresIn=int} "新的访问令牌"
// @Failure 401 {object} Response "刷新令牌无效或已过期"
// @Router /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		switch err {
		case jwtpkg.ErrInvalidToken:
			Unauthorized(c, "刷新令牌无效")
		case jwtpkg.ErrExpiredToken:
			Unauthorized(c, MsgTokenExpired)
		default:
			h.log.Error("failed to refresh token", zap.Error(err))
			InternalError(c, "刷新令牌失败")
		}
		return
	}

	Success(c, gin.H{
		"accessToken": accessToken,
		"expiresIn":   int64(h.accessExpiry.Seconds()),
	})
}

// Logout 注销当前令牌
// @Summary 用户注销
// @Description 将当前访问令牌加入黑名单，使其立即失效
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 204 "注销成功"
// @Router /v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, exists := c.Get("jti")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	// 剩余有效期未知时按完整访问令牌有效期封禁，宁长勿短
	if err := h.blacklist.AddToBlacklist(jti.(string), h.accessExpiry); err != nil {
		h.log.Error("failed to blacklist token", zap.Error(err))
		InternalError(c, "注销失败，请稍后重试")
		return
	}

	h.log.Info("user logged out", zap.String("user_id", c.GetString("userID")))
	NoContent(c)
}

// Me 获取当前用户信息
// @Summary 获取当前用户信息
// @Description 获取已认证用户的详细信息，需要有效的访问令牌
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} userResponse "用户信息"
// @Failure 401 {object} Response "未认证或令牌无效"
// @Router /v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	user, err := h.authService.GetUserByID(userID.(string))
	if err != nil {
		if err == auth.ErrUserNotFound {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to get user", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	limits := domain.LimitsFor(user.Plan)
	Success(c, gin.H{
		"user":   toUserResponse(user),
		"limits": limits,
	})
}

// ChangePassword 修改当前用户密码
// @Summary 修改密码
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body changePasswordRequest true "新旧密码"
// @Success 204 "修改成功"
// @Failure 401 {object} Response "旧密码错误"
// @Router /v1/auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	if err := h.authService.ChangePassword(userID.(string), req.OldPassword, req.NewPassword); err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			Unauthorized(c, "旧密码错误")
		case auth.ErrInvalidPassword:
			BadRequest(c, err.Error())
		default:
			h.log.Error("failed to change password", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}

	NoContent(c)
}
