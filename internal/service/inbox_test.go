package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailveil/backend/internal/domain"
)

func newInboxFixture(t *testing.T) (*InboxService, *inboundFixture) {
	t.Helper()
	f := newInboundFixture(t)
	access := NewAccessService(f.store)
	return NewInboxService(f.store, access, zap.NewNop()), f
}

func receiveMail(t *testing.T, f *inboundFixture, recipient, subject string) {
	t.Helper()
	require.NoError(t, f.inbound.Process(context.Background(), InboundMessage{
		Recipient: recipient,
		Sender:    "ext@example.com",
		Subject:   subject,
		BodyPlain: "body",
	}))
}

func TestInboxListScopedToAccessibleAliases(t *testing.T) {
	inbox, f := newInboxFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanFree)
	other := seedUser(t, f.store, "other@real.com", domain.PlanFree)

	mine, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "mine"})
	require.NoError(t, err)
	theirs, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: other.ID, Name: "theirs"})
	require.NoError(t, err)

	receiveMail(t, f, mine.Address, "for me")
	receiveMail(t, f, theirs.Address, "not for me")

	page, err := inbox.List(owner.ID, domain.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "for me", page.Entries[0].Subject)

	// 指定不可访问的别名时与不存在一致
	_, err = inbox.List(owner.ID, domain.EntryFilter{AliasID: theirs.ID})
	assert.ErrorIs(t, err, ErrAliasNotFound)
}

func TestInboxPagination(t *testing.T) {
	inbox, f := newInboxFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanFree)
	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "mine"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		receiveMail(t, f, alias.Address, fmt.Sprintf("mail %d", i))
	}

	page, err := inbox.List(owner.ID, domain.EntryFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 2)
	assert.Equal(t, 5, page.Total)

	last, err := inbox.List(owner.ID, domain.EntryFilter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, last.Entries, 1)
}

func TestInboxMarkReadAndUnreadFilter(t *testing.T) {
	inbox, f := newInboxFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanFree)
	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "mine"})
	require.NoError(t, err)

	receiveMail(t, f, alias.Address, "one")
	receiveMail(t, f, alias.Address, "two")

	page, err := inbox.List(owner.ID, domain.EntryFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)

	require.NoError(t, inbox.MarkRead(page.Entries[0].ID, owner.ID, true))

	unread, err := inbox.List(owner.ID, domain.EntryFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread.Entries, 1)
}

func TestInboxDeleteByCollaborator(t *testing.T) {
	inbox, f := newInboxFixture(t)
	owner := seedUser(t, f.store, "owner@real.com", domain.PlanPro)
	viewer := seedUser(t, f.store, "viewer@real.com", domain.PlanFree)
	stranger := seedUser(t, f.store, "stranger@real.com", domain.PlanFree)

	alias, err := f.aliasSvc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "team", IsCollaborative: true})
	require.NoError(t, err)
	_, err = f.aliasSvc.AddCollaborator(alias.ID, owner.ID, viewer.Email, domain.RoleViewer)
	require.NoError(t, err)

	receiveMail(t, f, alias.Address, "shared")
	page, err := inbox.List(owner.ID, domain.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	entryID := page.Entries[0].ID

	// 无关用户无法读取或删除
	_, err = inbox.Get(entryID, stranger.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.ErrorIs(t, inbox.Delete(entryID, stranger.ID), ErrEntryNotFound)

	// viewer 有读权限，也可以删除
	require.NoError(t, inbox.Delete(entryID, viewer.ID))
	_, err = inbox.Get(entryID, owner.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}
