package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ========== Reverse Alias Handlers ==========

// listReverseAliases godoc
// @Summary 列出反向别名
// @Description 列出当前用户可见别名下的全部反向别名映射
// @Tags 反向别名
// @Produce json
// @Success 200 {object} Response{data=[]domain.ReverseAlias}
// @Security BearerAuth
// @Router /v1/reverse-aliases [get]
func (h *Handler) listReverseAliases(c *gin.Context) {
	mappings, err := h.reverse.ListAccessible(c.GetString("userID"))
	if err != nil {
		h.log.Error("failed to list reverse aliases", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, mappings)
}

// deactivateReverseAlias godoc
// @Summary 停用反向别名
// @Description 停用一条反向别名映射，之后发往该地址的回信会被静默丢弃。
// 同一(别名, 收件人)再次发信会铸造新的反向别名
// @Tags 反向别名
// @Produce json
// @Param id path string true "反向别名 ID"
// @Success 204 "停用成功"
// @Failure 404 {object} Response "反向别名不存在"
// @Security BearerAuth
// @Router /v1/reverse-aliases/{id} [delete]
func (h *Handler) deactivateReverseAlias(c *gin.Context) {
	if err := h.reverse.Deactivate(c.Param("id"), c.GetString("userID")); err != nil {
		respondServiceError(c, err)
		return
	}

	h.log.Info("reverse alias deactivated",
		zap.String("reverse_id", c.Param("id")),
		zap.String("user_id", c.GetString("userID")),
	)
	NoContent(c)
}
