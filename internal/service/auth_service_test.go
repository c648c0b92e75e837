package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rentnest/internal/domain"
	"github.com/yourorg/rentnest/internal/security/auth"
)

func newTestAuthService(s *fakeStore) *AuthService {
	tm := auth.NewTokenManager("test-secret", "rentnest")
	return NewAuthService(&fakeUserRepo{s: s}, tm, time.Hour, nil)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newFakeStore()
	svc := newTestAuthService(s)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{
		Name:     "Tara",
		Email:    "Tara@Example.com",
		Password: "hunter2hunter2",
		Role:     domain.RoleTenant,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, registered.UserID)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, domain.RoleTenant, registered.Role)
	// Emails are normalized to lower case
	assert.Equal(t, "tara@example.com", registered.Email)

	logged, err := svc.Login(ctx, "tara@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, logged.UserID)
	assert.NotEmpty(t, logged.Token)
}

func TestRegisterValidation(t *testing.T) {
	s := newFakeStore()
	svc := newTestAuthService(s)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "hunter2hunter2", Role: domain.RoleTenant})
	assert.Error(t, err, "name required")

	_, err = svc.Register(ctx, RegisterInput{Name: "A", Email: "a@b.com", Password: "short", Role: domain.RoleTenant})
	assert.Error(t, err, "password too short")

	_, err = svc.Register(ctx, RegisterInput{Name: "A", Email: "a@b.com", Password: "hunter2hunter2", Role: "landlord"})
	assert.Error(t, err, "unknown role")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newFakeStore()
	svc := newTestAuthService(s)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "a@b.com", Password: "hunter2hunter2", Role: domain.RoleOwner})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Name: "B", Email: "a@b.com", Password: "hunter2hunter2", Role: domain.RoleTenant})
	require.Error(t, err)
	assert.Equal(t, "duplicate", domain.Kind(err))
}

func TestLoginUniformFailure(t *testing.T) {
	s := newFakeStore()
	svc := newTestAuthService(s)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "a@b.com", Password: "hunter2hunter2", Role: domain.RoleOwner})
	require.NoError(t, err)

	_, errWrongPass := svc.Login(ctx, "a@b.com", "wrong")
	require.Error(t, errWrongPass)

	_, errUnknown := svc.Login(ctx, "nobody@b.com", "hunter2hunter2")
	require.Error(t, errUnknown)

	// Unknown email and wrong password are indistinguishable
	assert.Equal(t, errWrongPass.Error(), errUnknown.Error())
}
