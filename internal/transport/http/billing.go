package httptransport

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailveil/backend/internal/service"
)

// ========== Billing Handlers ==========

// createCheckout godoc
// @Summary 创建 Pro 升级支付会话
// @Description 创建 Stripe Checkout 会话，返回支付页面 URL
// @Tags 套餐
// @Produce json
// @Success 200 {object} object{url=string} "支付页面地址"
// @Failure 400 {object} Response "支付功能未启用"
// @Failure 409 {object} Response "已是 Pro 套餐"
// @Security BearerAuth
// @Router /v1/billing/checkout [post]
func (h *Handler) createCheckout(c *gin.Context) {
	url, err := h.billing.CreateCheckout(c.GetString("userID"))
	if err != nil {
		if errors.Is(err, service.ErrBillingDisabled) || errors.Is(err, service.ErrAlreadyPro) || errors.Is(err, service.ErrUserNotFound) {
			respondServiceError(c, err)
			return
		}
		h.log.Error("failed to create checkout session", zap.Error(err))
		InternalError(c, MsgCheckoutFailed)
		return
	}

	Success(c, gin.H{"url": url})
}

// stripeWebhook 处理 Stripe 支付回调。
// 签名校验需要原始请求体，不能走 JSON 绑定。
func (h *Handler) stripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.billing.HandleWebhook(payload, c.GetHeader("Stripe-Signature")); err != nil {
		if errors.Is(err, service.ErrWebhookSignature) {
			h.log.Warn("stripe webhook signature verification failed", zap.String("ip", c.ClientIP()))
			BadRequest(c, "签名校验失败")
			return
		}
		h.log.Error("failed to process stripe webhook", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{"received": true})
}
