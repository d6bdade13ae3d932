package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAliasName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid simple", "sales2024", nil},
		{"valid with separators", "team.billing_eu-1", nil},
		{"minimum length", "ab", nil},
		{"empty", "", ErrAliasNameEmpty},
		{"too short", "a", ErrAliasNameTooShort},
		{"too long", strings.Repeat("a", 51), ErrAliasNameTooLong},
		{"illegal chars", "hello world", ErrAliasNameInvalid},
		{"at sign", "foo@bar", ErrAliasNameInvalid},
		{"reserved admin", "admin", ErrAliasNameReserved},
		{"reserved postmaster", "postmaster", ErrAliasNameReserved},
		{"reserved no-reply", "no-reply", ErrAliasNameReserved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAliasName(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeAliasName(t *testing.T) {
	assert.Equal(t, "sales", NormalizeAliasName("  Sales "))
	assert.Equal(t, "team.eu", NormalizeAliasName("Team.EU"))
}

func TestNewReverseID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewReverseID()
		assert.True(t, strings.HasPrefix(id, ReverseAliasPrefix))
		// 本地部分必须是合法的邮件地址字符
		assert.Regexp(t, `^ra_[a-z0-9_]+$`, id)
		_, dup := seen[id]
		assert.False(t, dup, "reverse id collision: %s", id)
		seen[id] = struct{}{}
	}
}

func TestIsReverseAddress(t *testing.T) {
	assert.True(t, IsReverseAddress("ra_ab12cd34ef56_xyz@veil.email"))
	assert.True(t, IsReverseAddress("ra_whatever"))
	assert.False(t, IsReverseAddress("sales@veil.email"))
	assert.False(t, IsReverseAddress("ralph@veil.email"))
}

func TestAliasRoles(t *testing.T) {
	alias := &Alias{
		ID:              "a1",
		OwnerID:         "owner",
		IsCollaborative: true,
		Collaborators: []Collaborator{
			{UserID: "m1", Role: RoleMember},
			{UserID: "v1", Role: RoleViewer},
		},
	}

	assert.Equal(t, RoleOwner, alias.RoleOf("owner"))
	assert.Equal(t, RoleMember, alias.RoleOf("m1"))
	assert.Equal(t, RoleViewer, alias.RoleOf("v1"))
	assert.Equal(t, RoleNone, alias.RoleOf("stranger"))

	assert.True(t, alias.CanSend("owner"))
	assert.True(t, alias.CanSend("m1"))
	assert.False(t, alias.CanSend("v1"), "viewer must not send")
	assert.False(t, alias.CanSend("stranger"))

	assert.True(t, alias.CanRead("v1"))
	assert.False(t, alias.CanRead("stranger"))

	// 转发集合 = 所有者 + 全部协作者
	assert.ElementsMatch(t, []string{"owner", "m1", "v1"}, alias.ForwardUserIDs())
}
