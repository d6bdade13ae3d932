package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"mailveil/backend/internal/config"
	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
)

// webhookTolerance Stripe 签名校验允许的时钟漂移
const webhookTolerance = 5 * time.Minute

var (
	// ErrBillingDisabled 未配置支付，升级功能不可用
	ErrBillingDisabled = errors.New("billing is not configured")
	// ErrAlreadyPro 用户已是 Pro 套餐
	ErrAlreadyPro = errors.New("user is already on the pro plan")
	// ErrWebhookSignature Stripe 签名校验失败
	ErrWebhookSignature = errors.New("invalid webhook signature")
)

// BillingService 套餐升级支付：创建 Stripe Checkout 会话，
// 并消费支付完成 webhook 把用户升级到 Pro。
type BillingService struct {
	store storage.Store
	cfg   *config.Config
	log   *zap.Logger
}

// NewBillingService 创建支付服务并初始化 Stripe 客户端密钥。
func NewBillingService(store storage.Store, cfg *config.Config, log *zap.Logger) *BillingService {
	if cfg.Billing.StripeSecretKey != "" {
		stripe.Key = cfg.Billing.StripeSecretKey
	}
	return &BillingService{store: store, cfg: cfg, log: log}
}

// Enabled 返回支付功能是否已配置。
func (s *BillingService) Enabled() bool {
	return s.cfg.Billing.StripeSecretKey != "" && s.cfg.Billing.ProPriceID != ""
}

// CreateCheckout 为用户创建一个升级到 Pro 的 Checkout 会话，返回跳转地址。
func (s *BillingService) CreateCheckout(userID string) (string, error) {
	if !s.Enabled() {
		return "", ErrBillingDisabled
	}

	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return "", fmt.Errorf("user lookup: %w", err)
	}
	if user.IsPro() {
		return "", ErrAlreadyPro
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(user.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.Billing.ProPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.cfg.Billing.SuccessURL),
		CancelURL:  stripe.String(s.cfg.Billing.CancelURL),
		Metadata: map[string]string{
			"user_id": user.ID,
		},
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		s.log.Error("failed to create checkout session",
			zap.String("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	return sess.URL, nil
}

// HandleWebhook 校验并消费 Stripe webhook。
// 只处理 checkout.session.completed，其余事件确认后忽略。
func (s *BillingService) HandleWebhook(payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithTolerance(
		payload, signature, s.cfg.Billing.StripeWebhookSecret, webhookTolerance,
	)
	if err != nil {
		s.log.Warn("stripe webhook signature verification failed", zap.Error(err))
		return ErrWebhookSignature
	}

	if event.Type != "checkout.session.completed" {
		s.log.Debug("ignoring stripe event", zap.String("type", string(event.Type)))
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}
	userID := sess.Metadata["user_id"]
	if userID == "" {
		s.log.Warn("checkout session missing user metadata", zap.String("session_id", sess.ID))
		return nil
	}

	return s.upgradeToPro(userID, sess.ID)
}

// upgradeToPro 把用户套餐置为 Pro。重复投递的 webhook 是无害的幂等操作。
func (s *BillingService) upgradeToPro(userID, sessionID string) error {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.log.Warn("checkout completed for unknown user", zap.String("user_id", userID))
			return nil
		}
		return fmt.Errorf("user lookup: %w", err)
	}
	if user.IsPro() {
		return nil
	}

	user.Plan = domain.PlanPro
	if err := s.store.UpdateUser(user); err != nil {
		return fmt.Errorf("update plan: %w", err)
	}

	s.log.Info("user upgraded to pro",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
	)
	return nil
}
