package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rentnest/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", "rentnest")

	token, err := tm.GenerateToken("user-1", "tara@example.com", "tenant", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "tara@example.com", claims.Email)
	assert.Equal(t, "tenant", claims.Role)

	actor := claims.Actor()
	assert.Equal(t, "user-1", actor.ID)
	assert.Equal(t, domain.RoleTenant, actor.Role)
}

func TestGenerateTokenRequiresIdentity(t *testing.T) {
	tm := NewTokenManager("test-secret", "rentnest")

	_, err := tm.GenerateToken("", "tara@example.com", "tenant", time.Hour)
	assert.Error(t, err)

	_, err = tm.GenerateToken("user-1", "tara@example.com", "", time.Hour)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret", "rentnest")
	other := NewTokenManager("other-secret", "rentnest")

	token, err := tm.GenerateToken("user-1", "tara@example.com", "owner", time.Hour)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", "rentnest")

	token, err := tm.GenerateToken("user-1", "tara@example.com", "owner", -time.Minute)
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	token, err := ExtractToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	_, err = ExtractToken("abc.def.ghi")
	assert.Error(t, err)

	_, err = ExtractToken("Basic dXNlcjpwYXNz")
	assert.Error(t, err)
}
