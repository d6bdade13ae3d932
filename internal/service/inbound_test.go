package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/relay"
	"mailveil/backend/internal/storage"
)

// fakeProvider 记录所有发送请求的测试中继
type fakeProvider struct {
	mu     sync.Mutex
	sent   []relay.Message
	failTo map[string]bool // 对指定收件人模拟失败
}

func (f *fakeProvider) Send(_ context.Context, msg *relay.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[msg.To] {
		return "", errors.New("simulated relay failure")
	}
	f.sent = append(f.sent, *msg)
	return "fake-" + uuid.NewString(), nil
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.To)
	}
	return out
}

type inboundFixture struct {
	inbound  *InboundService
	outbound *OutboundService
	aliasSvc *AliasService
	reverse  *ReverseAliasService
	provider *fakeProvider
	store    storage.Store
}

func newInboundFixture(t *testing.T) *inboundFixture {
	t.Helper()
	aliasSvc, store := newAliasFixture(t)
	log := zap.NewNop()
	access := NewAccessService(store)
	activity := NewActivityService(store, access, log)
	reverse := NewReverseAliasService(store, access, log)
	provider := &fakeProvider{failTo: map[string]bool{}}
	cfg := aliasSvc.cfg
	return &inboundFixture{
		inbound:  NewInboundService(store, access, activity, reverse, provider, cfg, log, nil, nil),
		outbound: NewOutboundService(store, access, activity, reverse, provider, cfg, log),
		aliasSvc: aliasSvc,
		reverse:  reverse,
		provider: provider,
		store:    store,
	}
}

func (f *inboundFixture) entriesFor(t *testing.T, aliasID string) []domain.MailboxEntry {
	t.Helper()
	page, err := f.store.ListEntries(domain.EntryFilter{AliasIDs: []string{aliasID}})
	require.NoError(t, err)
	return page.Entries
}

func TestInboundUnknownAliasDropped(t *testing.T) {
	f := newInboundFixture(t)

	err := f.inbound.Process(context.Background(), InboundMessage{
		Recipient: "nobody@mailveil.test",
		Sender:    "ext@example.com",
		Subject:   "hello",
	})
	require.NoError(t, err)
	assert.Empty(t, f.provider.sentTo())
}

func TestInboundUnknownReverseAliasDropped(t *testing.T) {
	f := newInboundFixture(t)

	err := f.inbound.Process(context.Background(), InboundMessage{
		Recipient: "ra_deadbeef0000_x@mailveil.test",
		Sender:    "ext@example.com",
		Subject:   "re: hello",
	})
	require.NoError(t, err)
	assert.Empty(t, f.provider.sentTo())
}

func TestInboundFreshMail(t *testing.T) {
	f := newInboundFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanFree)
	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "shop"})
	require.NoError(t, err)

	err = f.inbound.Process(context.Background(), InboundMessage{
		Recipient: "Shop@Mailveil.Test",
		Sender:    "store@vendor.com",
		Subject:   "order confirmation",
		BodyPlain: "thanks for your order",
		MessageID: "<m1@vendor>",
	})
	require.NoError(t, err)

	entries := f.entriesFor(t, alias.ID)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, domain.DirectionReceived, e.Direction)
	assert.False(t, e.IsReplyToSent)
	assert.True(t, e.IsForwarded)
	assert.Equal(t, "store@vendor.com", e.From)

	// 转发副本发给所有者的真实邮箱，Reply-To 重写为别名地址
	require.Len(t, f.provider.sent, 1)
	fwd := f.provider.sent[0]
	assert.Equal(t, "owner@real.com", fwd.To)
	assert.Equal(t, alias.Address, fwd.ReplyTo)
	assert.Contains(t, fwd.Subject, "[shop]")

	updated, err := f.store.GetAlias(alias.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.EmailsReceived)
}

func TestInboundInactiveAliasDropped(t *testing.T) {
	f := newInboundFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanFree)
	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "shop"})
	require.NoError(t, err)
	_, err = f.aliasSvc.Toggle(alias.ID, owner.ID, false)
	require.NoError(t, err)

	err = f.inbound.Process(context.Background(), InboundMessage{
		Recipient: alias.Address,
		Sender:    "store@vendor.com",
		Subject:   "hello",
	})
	require.NoError(t, err)
	assert.Empty(t, f.entriesFor(t, alias.ID))
	assert.Empty(t, f.provider.sentTo())
}

func TestInboundFanOutToCollaborators(t *testing.T) {
	f := newInboundFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanPro)
	member := seedUser(t, f.store, "member@real.com", domain.PlanFree)
	viewer := seedUser(t, f.store, "viewer@real.com", domain.PlanFree)

	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "team", IsCollaborative: true})
	require.NoError(t, err)
	_, err = f.aliasSvc.AddCollaborator(alias.ID, owner.ID, member.Email, domain.RoleMember)
	require.NoError(t, err)
	_, err = f.aliasSvc.AddCollaborator(alias.ID, owner.ID, viewer.Email, domain.RoleViewer)
	require.NoError(t, err)

	err = f.inbound.Process(context.Background(), InboundMessage{
		Recipient: alias.Address,
		Sender:    "ext@example.com",
		Subject:   "weekly update",
	})
	require.NoError(t, err)

	// 三个真实邮箱各收到一份副本，viewer 也在转发集合内
	assert.ElementsMatch(t,
		[]string{"owner@real.com", "member@real.com", "viewer@real.com"},
		f.provider.sentTo(),
	)

	// 协作别名追加 received 动态
	acts, err := f.store.ListActivitiesByAliasIDs([]string{alias.ID}, 10)
	require.NoError(t, err)
	var kinds []domain.ActivityKind
	for _, a := range acts {
		kinds = append(kinds, a.Kind)
	}
	assert.Contains(t, kinds, domain.ActivityReceived)
}

func TestInboundFanOutBestEffort(t *testing.T) {
	f := newInboundFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanPro)
	member := seedUser(t, f.store, "member@real.com", domain.PlanFree)

	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "team", IsCollaborative: true})
	require.NoError(t, err)
	_, err = f.aliasSvc.AddCollaborator(alias.ID, owner.ID, member.Email, domain.RoleMember)
	require.NoError(t, err)

	// 所有者投递失败不影响整体流程
	f.provider.failTo["owner@real.com"] = true

	err = f.inbound.Process(context.Background(), InboundMessage{
		Recipient: alias.Address,
		Sender:    "ext@example.com",
		Subject:   "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"member@real.com"}, f.provider.sentTo())

	entries := f.entriesFor(t, alias.ID)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsForwarded)

	updated, err := f.store.GetAlias(alias.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.EmailsReceived)
}

func TestReplyRoundTrip(t *testing.T) {
	f := newInboundFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanFree)
	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "orders"})
	require.NoError(t, err)

	// 所有者以别名身份发信给买家
	sent, err := f.outbound.Send(context.Background(), SendInput{
		CallerID:         owner.ID,
		FromAliasAddress: alias.Address,
		To:               "buyer@ext.com",
		Subject:          "invoice",
		BodyPlain:        "see attached",
	})
	require.NoError(t, err)
	require.NotEmpty(t, sent.ReverseID)

	// 买家回信到反向别名地址
	err = f.inbound.Process(context.Background(), InboundMessage{
		Recipient: sent.ReverseID + "@mailveil.test",
		Sender:    "buyer@ext.com",
		Subject:   "re: invoice",
		BodyPlain: "payment sent",
	})
	require.NoError(t, err)

	entries := f.entriesFor(t, alias.ID)
	require.Len(t, entries, 2)

	var reply *domain.MailboxEntry
	for i := range entries {
		if entries[i].Direction == domain.DirectionReceived {
			reply = &entries[i]
		}
	}
	require.NotNil(t, reply)
	assert.True(t, reply.IsReplyToSent)
	assert.Equal(t, sent.ReverseID, reply.ReverseID)
	assert.True(t, reply.IsForwarded)

	// 转发副本的 Reply-To 重写回别名地址，而不是反向别名
	last := f.provider.sent[len(f.provider.sent)-1]
	assert.Equal(t, "owner@real.com", last.To)
	assert.Equal(t, alias.Address, last.ReplyTo)

	ra, err := f.reverse.Resolve(sent.ReverseID)
	require.NoError(t, err)
	assert.Equal(t, 1, ra.EmailsSent)
	assert.Equal(t, 1, ra.EmailsReceived)

	// 回信不计入别名自身的 received 计数
	updated, err := f.store.GetAlias(alias.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.EmailsReceived)
}

func TestReplyToDeactivatedReverseDropped(t *testing.T) {
	f := newInboundFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanFree)
	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "orders"})
	require.NoError(t, err)

	sent, err := f.outbound.Send(context.Background(), SendInput{
		CallerID:         owner.ID,
		FromAliasAddress: alias.Address,
		To:               "buyer@ext.com",
		Subject:          "hello",
		BodyPlain:        "hi",
	})
	require.NoError(t, err)
	require.NoError(t, f.reverse.Deactivate(sent.ReverseID, owner.ID))

	before := len(f.entriesFor(t, alias.ID))
	err = f.inbound.Process(context.Background(), InboundMessage{
		Recipient: sent.ReverseID + "@mailveil.test",
		Sender:    "buyer@ext.com",
		Subject:   "re: hello",
	})
	require.NoError(t, err)
	assert.Len(t, f.entriesFor(t, alias.ID), before)
}
