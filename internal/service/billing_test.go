package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailveil/backend/internal/config"
	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
	"mailveil/backend/internal/storage/memory"
)

func newBillingFixture(t *testing.T, billing config.BillingConfig) (*BillingService, storage.Store) {
	t.Helper()
	store := memory.NewStore()
	cfg := &config.Config{Billing: billing}
	return NewBillingService(store, cfg, zap.NewNop()), store
}

func TestBillingDisabledWithoutStripeKeys(t *testing.T) {
	svc, store := newBillingFixture(t, config.BillingConfig{})
	user := seedUser(t, store, "user@example.com", domain.PlanFree)

	assert.False(t, svc.Enabled())

	_, err := svc.CreateCheckout(user.ID)
	assert.ErrorIs(t, err, ErrBillingDisabled)
}

func TestBillingEnabledRequiresBothKeys(t *testing.T) {
	svc, _ := newBillingFixture(t, config.BillingConfig{StripeSecretKey: "sk_test_xxx"})
	assert.False(t, svc.Enabled())

	svc, _ = newBillingFixture(t, config.BillingConfig{
		StripeSecretKey: "sk_test_xxx",
		ProPriceID:      "price_pro",
	})
	assert.True(t, svc.Enabled())
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, _ := newBillingFixture(t, config.BillingConfig{
		StripeSecretKey:     "sk_test_xxx",
		StripeWebhookSecret: "whsec_test",
		ProPriceID:          "price_pro",
	})

	err := svc.HandleWebhook([]byte(`{"type":"checkout.session.completed"}`), "t=0,v1=bogus")
	assert.ErrorIs(t, err, ErrWebhookSignature)
}

func TestUpgradeToProIdempotent(t *testing.T) {
	svc, store := newBillingFixture(t, config.BillingConfig{
		StripeSecretKey: "sk_test_xxx",
		ProPriceID:      "price_pro",
	})
	user := seedUser(t, store, "user@example.com", domain.PlanFree)

	require.NoError(t, svc.upgradeToPro(user.ID, "cs_test_1"))
	upgraded, err := store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, upgraded.Plan)

	// 重复投递的 webhook 不报错，套餐保持 Pro
	require.NoError(t, svc.upgradeToPro(user.ID, "cs_test_1"))
	again, err := store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, again.Plan)

	// 未知用户静默忽略
	require.NoError(t, svc.upgradeToPro("missing-user", "cs_test_2"))
}
