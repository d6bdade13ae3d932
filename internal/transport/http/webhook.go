package httptransport

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailveil/backend/internal/service"
)

// ========== Inbound Mail Webhook ==========

// 异步处理单封入站邮件的最长时间
const inboundProcessTimeout = 30 * time.Second

// 网关推送支持 JSON 和表单两种编码
type inboundRequest struct {
	Recipient string `json:"recipient" form:"recipient" binding:"required"`
	Sender    string `json:"sender" form:"sender"`
	Subject   string `json:"subject" form:"subject"`
	BodyPlain string `json:"bodyPlain" form:"body-plain"`
	BodyHTML  string `json:"bodyHtml" form:"body-html"`
	MessageID string `json:"messageId" form:"message-id"`
}

// inboundWebhook 接收上游邮件网关推送的入站邮件。
//
// 路由结果对上游不可见：无论目标别名是否存在、是否停用，
// 都返回 200，避免探测者据此枚举有效地址。
// 实际处理提交到协程池异步执行，队列满时退化为同步处理。
func (h *Handler) inboundWebhook(c *gin.Context) {
	var req inboundRequest
	if err := c.ShouldBind(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	msg := service.InboundMessage{
		Recipient: req.Recipient,
		Sender:    req.Sender,
		Subject:   req.Subject,
		BodyPlain: req.BodyPlain,
		BodyHTML:  req.BodyHTML,
		MessageID: req.MessageID,
	}

	process := func() {
		ctx, cancel := context.WithTimeout(context.Background(), inboundProcessTimeout)
		defer cancel()
		if err := h.inboundSvc.Process(ctx, msg); err != nil {
			h.log.Error("failed to process inbound mail",
				zap.String("recipient", msg.Recipient),
				zap.Error(err),
			)
		}
	}

	if h.pool == nil || !h.pool.TrySubmit(process) {
		process()
	}

	Success(c, gin.H{"accepted": true})
}
