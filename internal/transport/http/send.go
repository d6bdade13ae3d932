package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailveil/backend/internal/service"
)

// ========== Outbound Handlers ==========

type sendRequest struct {
	From      string `json:"from" binding:"required"` // 别名地址
	To        string `json:"to" binding:"required"`
	Subject   string `json:"subject"`
	BodyPlain string `json:"bodyPlain"`
	BodyHTML  string `json:"bodyHtml"`
}

// sendMail godoc
// @Summary 以别名身份发信
// @Description 通过别名向外部地址发送邮件。收件人看到的发件人是别名地址，
// 回信地址是一次性的反向别名，真实邮箱全程不暴露
// @Tags 发信
// @Accept json
// @Produce json
// @Param request body sendRequest true "邮件内容"
// @Success 201 {object} Response{data=domain.MailboxEntry}
// @Failure 400 {object} Response "收件地址无效或别名已停用"
// @Failure 403 {object} Response "viewer 无发信权限"
// @Failure 502 {object} Response "投递通道失败"
// @Security BearerAuth
// @Router /v1/send [post]
func (h *Handler) sendMail(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	entry, err := h.outbound.Send(c.Request.Context(), service.SendInput{
		CallerID:         c.GetString("userID"),
		FromAliasAddress: req.From,
		To:               req.To,
		Subject:          req.Subject,
		BodyPlain:        req.BodyPlain,
		BodyHTML:         req.BodyHTML,
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordOutbound(false)
		}
		if errors.Is(err, service.ErrTransport) {
			h.log.Error("outbound delivery failed",
				zap.String("from", req.From),
				zap.Error(err),
			)
		}
		respondServiceError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordOutbound(true)
	}

	Created(c, entry)
}
