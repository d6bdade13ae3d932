package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/service"
)

// ========== Alias Handlers ==========

type createAliasRequest struct {
	Name            string `json:"name" binding:"required"`
	IsCollaborative bool   `json:"isCollaborative"`
}

type toggleAliasRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

type addCollaboratorRequest struct {
	Email string `json:"email" binding:"required"`
	Role  string `json:"role" binding:"required"`
}

// createAlias godoc
// @Summary 创建别名
// @Description 创建一个新的别名邮箱，地址为 name@域名
// @Tags 别名
// @Accept json
// @Produce json
// @Param request body createAliasRequest true "别名信息"
// @Success 201 {object} Response{data=domain.Alias}
// @Failure 402 {object} Response "超出套餐限额"
// @Failure 409 {object} Response "别名已被占用"
// @Security BearerAuth
// @Router /v1/aliases [post]
func (h *Handler) createAlias(c *gin.Context) {
	var req createAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	userID := c.GetString("userID")
	alias, err := h.aliases.Create(service.CreateAliasInput{
		OwnerID:         userID,
		Name:            req.Name,
		IsCollaborative: req.IsCollaborative,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.AliasesCreated.Inc()
	}
	h.log.Info("alias created",
		zap.String("alias_id", alias.ID),
		zap.String("address", alias.Address),
		zap.String("owner_id", userID),
	)

	Created(c, alias)
}

// listAliases godoc
// @Summary 列出别名
// @Description 列出当前用户拥有或参与协作的全部别名
// @Tags 别名
// @Produce json
// @Success 200 {object} Response{data=[]domain.Alias}
// @Security BearerAuth
// @Router /v1/aliases [get]
func (h *Handler) listAliases(c *gin.Context) {
	aliases, err := h.aliases.ListAccessible(c.GetString("userID"))
	if err != nil {
		h.log.Error("failed to list aliases", zap.Error(err))
		InternalError(c, MsgAliasListFailed)
		return
	}

	Success(c, aliases)
}

// toggleAlias godoc
// @Summary 启用/停用别名
// @Description 切换别名的启用状态，仅所有者可操作。停用后入站邮件静默丢弃，出站发信被拒绝
// @Tags 别名
// @Accept json
// @Produce json
// @Param id path string true "别名 ID"
// @Param request body toggleAliasRequest true "目标状态"
// @Success 200 {object} Response{data=domain.Alias}
// @Failure 403 {object} Response "仅所有者可操作"
// @Security BearerAuth
// @Router /v1/aliases/{id} [patch]
func (h *Handler) toggleAlias(c *gin.Context) {
	var req toggleAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	alias, err := h.aliases.Toggle(c.Param("id"), c.GetString("userID"), *req.IsActive)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	Success(c, alias)
}

// addCollaborator godoc
// @Summary 添加协作者
// @Description 按邮箱邀请已注册用户成为协作别名的 member 或 viewer，仅所有者可操作
// @Tags 别名
// @Accept json
// @Produce json
// @Param id path string true "别名 ID"
// @Param request body addCollaboratorRequest true "协作者信息"
// @Success 200 {object} Response{data=domain.Alias}
// @Failure 404 {object} Response "用户不存在"
// @Failure 409 {object} Response "已是协作者"
// @Security BearerAuth
// @Router /v1/aliases/{id}/collaborators [post]
func (h *Handler) addCollaborator(c *gin.Context) {
	var req addCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	alias, err := h.aliases.AddCollaborator(
		c.Param("id"),
		c.GetString("userID"),
		req.Email,
		domain.CollaboratorRole(req.Role),
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	Success(c, alias)
}

// removeCollaborator godoc
// @Summary 移除协作者
// @Description 将协作者从别名中移除，仅所有者可操作
// @Tags 别名
// @Produce json
// @Param id path string true "别名 ID"
// @Param userId path string true "协作者用户 ID"
// @Success 200 {object} Response{data=domain.Alias}
// @Security BearerAuth
// @Router /v1/aliases/{id}/collaborators/{userId} [delete]
func (h *Handler) removeCollaborator(c *gin.Context) {
	alias, err := h.aliases.RemoveCollaborator(
		c.Param("id"),
		c.GetString("userID"),
		c.Param("userId"),
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	Success(c, alias)
}

// aliasActivity godoc
// @Summary 别名动态
// @Description 返回当前用户可见别名上的最近动态（发信、收信、协作者变更）
// @Tags 别名
// @Produce json
// @Success 200 {object} Response{data=[]domain.ActivityEntry}
// @Security BearerAuth
// @Router /v1/activities [get]
func (h *Handler) aliasActivity(c *gin.Context) {
	feed, err := h.activity.Feed(c.GetString("userID"))
	if err != nil {
		h.log.Error("failed to load activity feed", zap.Error(err))
		InternalError(c, MsgActivityFeedFailed)
		return
	}

	Success(c, feed)
}
