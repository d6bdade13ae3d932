package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailveil/backend/internal/domain"
)

// ========== Inbox Handlers ==========

type markReadRequest struct {
	IsRead *bool `json:"isRead" binding:"required"`
}

// listEntries godoc
// @Summary 收件箱列表
// @Description 分页列出当前用户可见别名下的邮件记录，支持按别名和未读过滤
// @Tags 收件箱
// @Produce json
// @Param aliasId query string false "按别名过滤"
// @Param unread query bool false "仅未读"
// @Param page query int false "页码，默认 1"
// @Param pageSize query int false "每页条数，默认 20"
// @Success 200 {object} Response{data=domain.EntryPage}
// @Security BearerAuth
// @Router /v1/inbox [get]
func (h *Handler) listEntries(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	unread, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))

	result, err := h.inbox.List(c.GetString("userID"), domain.EntryFilter{
		AliasID:    c.Query("aliasId"),
		UnreadOnly: unread,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	Success(c, result)
}

// getEntry godoc
// @Summary 邮件详情
// @Tags 收件箱
// @Produce json
// @Param id path string true "邮件 ID"
// @Success 200 {object} Response{data=domain.MailboxEntry}
// @Failure 404 {object} Response "邮件不存在"
// @Security BearerAuth
// @Router /v1/inbox/{id} [get]
func (h *Handler) getEntry(c *gin.Context) {
	entry, err := h.inbox.Get(c.Param("id"), c.GetString("userID"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	Success(c, entry)
}

// markEntryRead godoc
// @Summary 标记已读/未读
// @Tags 收件箱
// @Accept json
// @Produce json
// @Param id path string true "邮件 ID"
// @Param request body markReadRequest true "目标状态"
// @Success 204 "标记成功"
// @Security BearerAuth
// @Router /v1/inbox/{id} [patch]
func (h *Handler) markEntryRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.inbox.MarkRead(c.Param("id"), c.GetString("userID"), *req.IsRead); err != nil {
		respondServiceError(c, err)
		return
	}

	NoContent(c)
}

// deleteEntry godoc
// @Summary 删除邮件
// @Description 从收件箱中删除一条邮件记录，viewer 也可删除自己可见的记录
// @Tags 收件箱
// @Produce json
// @Param id path string true "邮件 ID"
// @Success 204 "删除成功"
// @Security BearerAuth
// @Router /v1/inbox/{id} [delete]
func (h *Handler) deleteEntry(c *gin.Context) {
	if err := h.inbox.Delete(c.Param("id"), c.GetString("userID")); err != nil {
		respondServiceError(c, err)
		return
	}

	h.log.Info("entry deleted",
		zap.String("entry_id", c.Param("id")),
		zap.String("user_id", c.GetString("userID")),
	)
	NoContent(c)
}
