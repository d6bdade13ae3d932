package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailveil/backend/internal/config"
	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage"
	"mailveil/backend/internal/storage/memory"
)

func newAliasFixture(t *testing.T) (*AliasService, storage.Store) {
	t.Helper()
	store := memory.NewStore()
	cfg := &config.Config{}
	cfg.Mail.Domain = "mailveil.test"
	access := NewAccessService(store)
	activity := NewActivityService(store, access, zap.NewNop())
	return NewAliasService(store, access, activity, cfg), store
}

func seedUser(t *testing.T, store storage.Store, email string, plan domain.PlanTier) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      email,
		Plan:      plan,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateUser(u))
	return u
}

func TestCreateAliasNormalizesAndBuildsAddress(t *testing.T) {
	svc, store := newAliasFixture(t)
	owner := seedUser(t, store, "owner@example.com", domain.PlanFree)

	alias, err := svc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "  Shopping  "})
	require.NoError(t, err)
	assert.Equal(t, "shopping", alias.LocalName)
	assert.Equal(t, "shopping@mailveil.test", alias.Address)
	assert.True(t, alias.IsActive)
	assert.Equal(t, owner.Email, alias.OwnerEmail)
}

func TestCreateAliasRejectsInvalidNames(t *testing.T) {
	svc, store := newAliasFixture(t)
	owner := seedUser(t, store, "owner@example.com", domain.PlanFree)

	_, err := svc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "a"})
	assert.ErrorIs(t, err, domain.ErrAliasNameTooShort)

	_, err = svc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "admin"})
	assert.ErrorIs(t, err, domain.ErrAliasNameReserved)
}

func TestCreateAliasDuplicateAddress(t *testing.T) {
	svc, store := newAliasFixture(t)
	a := seedUser(t, store, "a@example.com", domain.PlanFree)
	b := seedUser(t, store, "b@example.com", domain.PlanFree)

	_, err := svc.Create(CreateAliasInput{OwnerID: a.ID, Name: "shop"})
	require.NoError(t, err)

	_, err = svc.Create(CreateAliasInput{OwnerID: b.ID, Name: "shop"})
	assert.ErrorIs(t, err, ErrDuplicateAlias)
}

func TestCreateAliasFreeQuota(t *testing.T) {
	svc, store := newAliasFixture(t)
	owner := seedUser(t, store, "owner@example.com", domain.PlanFree)

	for _, name := range []string{"one", "two", "three", "four", "five"} {
		_, err := svc.Create(CreateAliasInput{OwnerID: owner.ID, Name: name})
		require.NoError(t, err)
	}

	_, err := svc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "six"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestCreateCollaborativeRequiresPro(t *testing.T) {
	svc, store := newAliasFixture(t)
	free := seedUser(t, store, "free@example.com", domain.PlanFree)
	pro := seedUser(t, store, "pro@example.com", domain.PlanPro)

	_, err := svc.Create(CreateAliasInput{OwnerID: free.ID, Name: "team", IsCollaborative: true})
	assert.ErrorIs(t, err, ErrPlanRequired)

	alias, err := svc.Create(CreateAliasInput{OwnerID: pro.ID, Name: "team", IsCollaborative: true})
	require.NoError(t, err)
	assert.True(t, alias.IsCollaborative)
}

func TestCollaborativeDoesNotCountAgainstQuota(t *testing.T) {
	svc, store := newAliasFixture(t)
	owner := seedUser(t, store, "pro@example.com", domain.PlanPro)

	for _, name := range []string{"c-one", "c-two", "c-three"} {
		_, err := svc.Create(CreateAliasInput{OwnerID: owner.ID, Name: name, IsCollaborative: true})
		require.NoError(t, err)
	}

	count, err := store.CountPersonalAliases(owner.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestToggleOwnerOnly(t *testing.T) {
	svc, store := newAliasFixture(t)
	owner := seedUser(t, store, "pro@example.com", domain.PlanPro)
	member := seedUser(t, store, "member@example.com", domain.PlanFree)
	stranger := seedUser(t, store, "stranger@example.com", domain.PlanFree)

	alias, err := svc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "team", IsCollaborative: true})
	require.NoError(t, err)
	_, err = svc.AddCollaborator(alias.ID, owner.ID, member.Email, domain.RoleMember)
	require.NoError(t, err)

	// 协作者可读但不能切换
	_, err = svc.Toggle(alias.ID, member.ID, false)
	assert.ErrorIs(t, err, ErrNotOwner)

	// 无关用户得到与不存在相同的错误
	_, err = svc.Toggle(alias.ID, stranger.ID, false)
	assert.ErrorIs(t, err, ErrAliasNotFound)

	toggled, err := svc.Toggle(alias.ID, owner.ID, false)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)
}

func TestAddCollaborator(t *testing.T) {
	svc, store := newAliasFixture(t)
	owner := seedUser(t, store, "pro@example.com", domain.PlanPro)
	member := seedUser(t, store, "member@example.com", domain.PlanFree)

	alias, err := svc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "team", IsCollaborative: true})
	require.NoError(t, err)

	updated, err := svc.AddCollaborator(alias.ID, owner.ID, "Member@Example.com", domain.RoleViewer)
	require.NoError(t, err)
	require.Len(t, updated.Collaborators, 1)
	assert.Equal(t, member.ID, updated.Collaborators[0].UserID)
	assert.Equal(t, domain.RoleViewer, updated.Collaborators[0].Role)
	assert.Equal(t, member.Email, updated.Collaborators[0].UserEmail)

	// 重复添加
	_, err = svc.AddCollaborator(alias.ID, owner.ID, member.Email, domain.RoleMember)
	assert.ErrorIs(t, err, ErrAlreadyCollaborator)

	// 产生 added_collaborator 动态
	acts, err := store.ListActivitiesByAliasIDs([]string{alias.ID}, 10)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, domain.ActivityAddedCollaborator, acts[0].Kind)
	assert.Equal(t, member.Email, acts[0].Data["addedUserEmail"])
}

func TestAddCollaboratorRejections(t *testing.T) {
	svc, store := newAliasFixture(t)
	owner := seedUser(t, store, "pro@example.com", domain.PlanPro)
	member := seedUser(t, store, "member@example.com", domain.PlanFree)

	personal, err := svc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "solo"})
	require.NoError(t, err)
	team, err := svc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "team", IsCollaborative: true})
	require.NoError(t, err)

	_, err = svc.AddCollaborator(team.ID, owner.ID, member.Email, domain.CollaboratorRole("admin"))
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.AddCollaborator(personal.ID, owner.ID, member.Email, domain.RoleMember)
	assert.ErrorIs(t, err, ErrNotCollaborative)

	_, err = svc.AddCollaborator(team.ID, owner.ID, "ghost@example.com", domain.RoleMember)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.AddCollaborator(team.ID, owner.ID, owner.Email, domain.RoleMember)
	assert.ErrorIs(t, err, ErrSelfCollaborator)

	// 非所有者（即便是 member）不能添加协作者
	_, err = svc.AddCollaborator(team.ID, owner.ID, member.Email, domain.RoleMember)
	require.NoError(t, err)
	other := seedUser(t, store, "other@example.com", domain.PlanFree)
	_, err = svc.AddCollaborator(team.ID, member.ID, other.Email, domain.RoleMember)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestRemoveCollaborator(t *testing.T) {
	svc, store := newAliasFixture(t)
	owner := seedUser(t, store, "pro@example.com", domain.PlanPro)
	member := seedUser(t, store, "member@example.com", domain.PlanFree)

	alias, err := svc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "team", IsCollaborative: true})
	require.NoError(t, err)
	_, err = svc.AddCollaborator(alias.ID, owner.ID, member.Email, domain.RoleMember)
	require.NoError(t, err)

	updated, err := svc.RemoveCollaborator(alias.ID, owner.ID, member.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Collaborators)

	// 被移除后不再可访问
	accessible, err := svc.ListAccessible(member.ID)
	require.NoError(t, err)
	assert.Empty(t, accessible)

	_, err = svc.RemoveCollaborator(alias.ID, owner.ID, member.ID)
	assert.ErrorIs(t, err, ErrCollaboratorNotFound)

	acts, err := store.ListActivitiesByAliasIDs([]string{alias.ID}, 10)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	kinds := []domain.ActivityKind{acts[0].Kind, acts[1].Kind}
	assert.Contains(t, kinds, domain.ActivityRemovedCollaborator)
}

func TestListAccessibleAnnotatesIdentities(t *testing.T) {
	svc, store := newAliasFixture(t)
	owner := seedUser(t, store, "pro@example.com", domain.PlanPro)
	member := seedUser(t, store, "member@example.com", domain.PlanFree)

	alias, err := svc.Create(CreateAliasInput{OwnerID: owner.ID, Name: "team", IsCollaborative: true})
	require.NoError(t, err)
	_, err = svc.AddCollaborator(alias.ID, owner.ID, member.Email, domain.RoleMember)
	require.NoError(t, err)

	fromMember, err := svc.ListAccessible(member.ID)
	require.NoError(t, err)
	require.Len(t, fromMember, 1)
	assert.Equal(t, owner.Email, fromMember[0].OwnerEmail)
	require.Len(t, fromMember[0].Collaborators, 1)
	assert.Equal(t, member.Email, fromMember[0].Collaborators[0].UserEmail)
}
