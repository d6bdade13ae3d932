package memory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
)

func newAlias(ownerID, address string) *domain.Alias {
	return &domain.Alias{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		LocalName: domain.LocalPart(address),
		Address:   address,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSaveAliasUniqueAddress(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.SaveAlias(newAlias("u1", "sales@veil.email")))
	err := store.SaveAlias(newAlias("u2", "sales@veil.email"))
	assert.ErrorIs(t, err, storage.ErrAliasExists)
}

func TestListAccessibleAliases(t *testing.T) {
	store := NewStore()

	owned := newAlias("u1", "mine@veil.email")
	require.NoError(t, store.SaveAlias(owned))

	shared := newAlias("u2", "team@veil.email")
	shared.IsCollaborative = true
	require.NoError(t, store.SaveAlias(shared))
	require.NoError(t, store.AddCollaborator(&domain.Collaborator{
		ID: uuid.NewString(), AliasID: shared.ID, UserID: "u1", Role: domain.RoleViewer,
	}))

	other := newAlias("u3", "other@veil.email")
	require.NoError(t, store.SaveAlias(other))

	aliases, err := store.ListAccessibleAliases("u1")
	require.NoError(t, err)
	ids := []string{aliases[0].ID, aliases[1].ID}
	assert.Len(t, aliases, 2)
	assert.ElementsMatch(t, []string{owned.ID, shared.ID}, ids)

	// 移除协作者后不再可见
	require.NoError(t, store.RemoveCollaborator(shared.ID, "u1"))
	aliases, err = store.ListAccessibleAliases("u1")
	require.NoError(t, err)
	assert.Len(t, aliases, 1)
	assert.Equal(t, owned.ID, aliases[0].ID)
}

func TestCountPersonalAliases(t *testing.T) {
	store := NewStore()

	a := newAlias("u1", "one@veil.email")
	require.NoError(t, store.SaveAlias(a))

	collab := newAlias("u1", "team@veil.email")
	collab.IsCollaborative = true
	require.NoError(t, store.SaveAlias(collab))

	count, err := store.CountPersonalAliases("u1")
	require.NoError(t, err)
	// 协作别名不计入个人别名数量
	assert.Equal(t, 1, count)
}

func TestReversePairUniqueness(t *testing.T) {
	store := NewStore()

	first := &domain.ReverseAlias{
		ID:             uuid.NewString(),
		ReverseID:      domain.NewReverseID(),
		AliasID:        "a1",
		RecipientEmail: "buyer@ext.com",
		IsActive:       true,
	}
	require.NoError(t, store.SaveReverseAlias(first))

	dup := &domain.ReverseAlias{
		ID:             uuid.NewString(),
		ReverseID:      domain.NewReverseID(),
		AliasID:        "a1",
		RecipientEmail: "Buyer@Ext.com", // 收件人大小写不影响唯一性
		IsActive:       true,
	}
	assert.ErrorIs(t, store.SaveReverseAlias(dup), storage.ErrReversePairExists)

	// 停用后槽位释放，可重新铸造
	require.NoError(t, store.DeactivateReverseAlias(first.ReverseID))
	assert.NoError(t, store.SaveReverseAlias(dup))

	// 停用的映射不再可解析
	_, err := store.GetActiveReverseAlias(first.ReverseID)
	assert.ErrorIs(t, err, storage.ErrReverseAliasNotFound)
}

func TestReverseCounters(t *testing.T) {
	store := NewStore()

	ra := &domain.ReverseAlias{
		ID:             uuid.NewString(),
		ReverseID:      domain.NewReverseID(),
		AliasID:        "a1",
		RecipientEmail: "buyer@ext.com",
		IsActive:       true,
	}
	require.NoError(t, store.SaveReverseAlias(ra))

	require.NoError(t, store.IncrementReverseSent(ra.ReverseID))
	require.NoError(t, store.IncrementReverseReceived(ra.ReverseID))
	require.NoError(t, store.IncrementReverseReceived(ra.ReverseID))

	got, err := store.GetActiveReverseAlias(ra.ReverseID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.EmailsSent)
	assert.Equal(t, 2, got.EmailsReceived)
	assert.False(t, got.LastUsedAt.IsZero())
}

func TestListEntriesFilterAndPagination(t *testing.T) {
	store := NewStore()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		entry := &domain.MailboxEntry{
			ID:         uuid.NewString(),
			AliasID:    "a1",
			Direction:  domain.DirectionReceived,
			IsRead:     i%2 == 0,
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.SaveEntry(entry))
	}
	require.NoError(t, store.SaveEntry(&domain.MailboxEntry{
		ID: uuid.NewString(), AliasID: "a2", ReceivedAt: base,
	}))

	page, err := store.ListEntries(domain.EntryFilter{
		AliasIDs: []string{"a1"}, Page: 1, PageSize: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Entries, 3)
	// 按接收时间倒序
	assert.True(t, page.Entries[0].ReceivedAt.After(page.Entries[1].ReceivedAt))

	unread, err := store.ListEntries(domain.EntryFilter{
		AliasIDs: []string{"a1"}, UnreadOnly: true, Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, unread.Total)
}

func TestMarkAndDeleteEntry(t *testing.T) {
	store := NewStore()

	entry := &domain.MailboxEntry{ID: uuid.NewString(), AliasID: "a1", ReceivedAt: time.Now()}
	require.NoError(t, store.SaveEntry(entry))

	require.NoError(t, store.MarkEntryRead(entry.ID, true))
	got, err := store.GetEntry(entry.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	assert.NotNil(t, got.ReadAt)

	require.NoError(t, store.MarkEntryForwarded(entry.ID))
	got, _ = store.GetEntry(entry.ID)
	assert.True(t, got.IsForwarded)

	require.NoError(t, store.DeleteEntry(entry.ID))
	_, err = store.GetEntry(entry.ID)
	assert.ErrorIs(t, err, storage.ErrEntryNotFound)
}

func TestActivityAppendOnly(t *testing.T) {
	store := NewStore()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveActivity(&domain.ActivityEntry{
			ID:        uuid.NewString(),
			AliasID:   "a1",
			Kind:      domain.ActivityReceived,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := store.ListActivitiesByAliasIDs([]string{"a1"}, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
}
