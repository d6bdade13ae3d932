package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailveil/backend/internal/domain"
)

func TestSendMasksRealAddress(t *testing.T) {
	f := newInboundFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanFree)
	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "orders"})
	require.NoError(t, err)

	entry, err := f.outbound.Send(context.Background(), SendInput{
		CallerID:         owner.ID,
		FromAliasAddress: "Orders@Mailveil.Test",
		To:               "Buyer@Ext.com",
		Subject:          "quote",
		BodyPlain:        "our offer",
	})
	require.NoError(t, err)

	require.Len(t, f.provider.sent, 1)
	msg := f.provider.sent[0]
	assert.Equal(t, alias.Address, msg.From)
	assert.Equal(t, "buyer@ext.com", msg.To)
	assert.True(t, strings.HasPrefix(msg.ReplyTo, domain.ReverseAliasPrefix))
	assert.True(t, strings.HasSuffix(msg.ReplyTo, "@mailveil.test"))
	assert.NotContains(t, msg.From, "owner@real.com")
	assert.NotContains(t, msg.ReplyTo, "owner@real.com")

	assert.Equal(t, domain.DirectionSent, entry.Direction)
	assert.Equal(t, owner.ID, entry.ActorUserID)
	assert.True(t, entry.IsRead)
	assert.NotEmpty(t, entry.TransportID)

	updated, err := f.store.GetAlias(alias.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.EmailsSent)
}

func TestSendReusesReverseAlias(t *testing.T) {
	f := newInboundFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanFree)
	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "orders"})
	require.NoError(t, err)

	first, err := f.outbound.Send(context.Background(), SendInput{
		CallerID: owner.ID, FromAliasAddress: alias.Address,
		To: "buyer@ext.com", Subject: "one", BodyPlain: "a",
	})
	require.NoError(t, err)
	second, err := f.outbound.Send(context.Background(), SendInput{
		CallerID: owner.ID, FromAliasAddress: alias.Address,
		To: "buyer@ext.com", Subject: "two", BodyPlain: "b",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ReverseID, second.ReverseID)

	ra, err := f.reverse.Resolve(first.ReverseID)
	require.NoError(t, err)
	assert.Equal(t, 2, ra.EmailsSent)
}

func TestSendRoleEnforcement(t *testing.T) {
	f := newInboundFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanPro)
	member := seedUser(t, f.store, "member@real.com", domain.PlanFree)
	viewer := seedUser(t, f.store, "viewer@real.com", domain.PlanFree)
	stranger := seedUser(t, f.store, "stranger@real.com", domain.PlanFree)

	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "team", IsCollaborative: true})
	require.NoError(t, err)
	_, err = f.aliasSvc.AddCollaborator(alias.ID, owner.ID, member.Email, domain.RoleMember)
	require.NoError(t, err)
	_, err = f.aliasSvc.AddCollaborator(alias.ID, owner.ID, viewer.Email, domain.RoleViewer)
	require.NoError(t, err)

	input := SendInput{FromAliasAddress: alias.Address, To: "ext@x.com", Subject: "s", BodyPlain: "b"}

	input.CallerID = viewer.ID
	_, err = f.outbound.Send(context.Background(), input)
	assert.ErrorIs(t, err, ErrInsufficientPermissions)

	input.CallerID = stranger.ID
	_, err = f.outbound.Send(context.Background(), input)
	assert.ErrorIs(t, err, ErrAliasNotFound)

	input.CallerID = member.ID
	_, err = f.outbound.Send(context.Background(), input)
	assert.NoError(t, err)
}

func TestSendValidation(t *testing.T) {
	f := newInboundFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanFree)
	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "orders"})
	require.NoError(t, err)

	_, err = f.outbound.Send(context.Background(), SendInput{
		CallerID: owner.ID, FromAliasAddress: alias.Address,
		To: "not-an-email", Subject: "s", BodyPlain: "b",
	})
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = f.outbound.Send(context.Background(), SendInput{
		CallerID: owner.ID, FromAliasAddress: "missing@mailveil.test",
		To: "ext@x.com", Subject: "s", BodyPlain: "b",
	})
	assert.ErrorIs(t, err, ErrAliasNotFound)

	_, err = f.aliasSvc.Toggle(alias.ID, owner.ID, false)
	require.NoError(t, err)
	_, err = f.outbound.Send(context.Background(), SendInput{
		CallerID: owner.ID, FromAliasAddress: alias.Address,
		To: "ext@x.com", Subject: "s", BodyPlain: "b",
	})
	assert.ErrorIs(t, err, ErrAliasInactive)
}

func TestSendTransportFailureSurfaced(t *testing.T) {
	f := newInboundFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanFree)
	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "orders"})
	require.NoError(t, err)

	f.provider.failTo["ext@x.com"] = true
	_, err = f.outbound.Send(context.Background(), SendInput{
		CallerID: owner.ID, FromAliasAddress: alias.Address,
		To: "ext@x.com", Subject: "s", BodyPlain: "b",
	})
	assert.ErrorIs(t, err, ErrTransport)

	// 发送失败时不落 sent 记录，计数不变
	page, err := f.store.ListEntries(domain.EntryFilter{AliasIDs: []string{alias.ID}})
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
}

func TestSentActivityPreviewTruncated(t *testing.T) {
	f := newInboundFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanPro)
	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "team", IsCollaborative: true})
	require.NoError(t, err)

	long := strings.Repeat("x", 250)
	_, err = f.outbound.Send(context.Background(), SendInput{
		CallerID: owner.ID, FromAliasAddress: alias.Address,
		To: "ext@x.com", Subject: "long", BodyPlain: long,
	})
	require.NoError(t, err)

	acts, err := f.store.ListActivitiesByAliasIDs([]string{alias.ID}, 10)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, domain.ActivitySent, acts[0].Kind)
	preview := acts[0].Data["preview"]
	assert.Len(t, preview, sentPreviewLimit+3)
	assert.True(t, strings.HasSuffix(preview, "..."))
}
