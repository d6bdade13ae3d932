package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailveil/backend/internal/domain"
	"mailveil/backend/internal/storage/memory"
)

func TestRegister(t *testing.T) {
	service := NewService(memory.NewStore())

	user, err := service.Register(RegisterInput{
		Email:    "Test@Example.com",
		Name:     "Tester",
		Password: "Password123!",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, domain.PlanFree, user.Plan)
	assert.NotEqual(t, "Password123!", user.PasswordHash)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service := NewService(memory.NewStore())

	_, err := service.Register(RegisterInput{Email: "test@example.com", Password: "Password123!"})
	require.NoError(t, err)

	_, err = service.Register(RegisterInput{Email: "TEST@example.com", Password: "Password123!"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestRegisterValidation(t *testing.T) {
	service := NewService(memory.NewStore())

	_, err := service.Register(RegisterInput{Email: "not-an-email", Password: "Password123!"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = service.Register(RegisterInput{Email: "test@example.com", Password: "short"})
	assert.Error(t, err)
}

func TestRegisterDefaultsNameFromEmail(t *testing.T) {
	service := NewService(memory.NewStore())

	user, err := service.Register(RegisterInput{Email: "alice@example.com", Password: "Password123!"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name)
}

func TestLogin(t *testing.T) {
	service := NewService(memory.NewStore())

	registered, err := service.Register(RegisterInput{Email: "test@example.com", Password: "Password123!"})
	require.NoError(t, err)

	user, err := service.Login(LoginInput{Email: "test@example.com", Password: "Password123!"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = service.Login(LoginInput{Email: "test@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Login(LoginInput{Email: "ghost@example.com", Password: "Password123!"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	service := NewService(memory.NewStore())

	user, err := service.Register(RegisterInput{Email: "test@example.com", Password: "Password123!"})
	require.NoError(t, err)

	err = service.ChangePassword(user.ID, "wrong", "NewPassword456!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, service.ChangePassword(user.ID, "Password123!", "NewPassword456!"))

	_, err = service.Login(LoginInput{Email: "test@example.com", Password: "NewPassword456!"})
	assert.NoError(t, err)
}
