package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/request-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 15)

	token, expires, err := tm.GenerateToken("emp-1", domain.SubjectTypeEmployee, "role-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expires, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.SubjectID)
	assert.Equal(t, domain.SubjectTypeEmployee, claims.Kind)
	assert.Equal(t, "role-1", claims.RoleID)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("one", 15).GenerateToken("c-1", domain.SubjectTypeCustomer, "")
	require.NoError(t, err)

	_, err = NewTokenManager("two", 15).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := tm.GenerateToken("c-1", domain.SubjectTypeCustomer, "")
	require.NoError(t, err)

	_, err = NewTokenManager("secret", 1).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenRejectsUnknownKind(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, _, err := tm.GenerateToken("x", domain.SubjectType("ROBOT"), "")
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "correct horse"))
	assert.Error(t, ComparePassword(hash, "wrong horse"))

	assert.True(t, PasswordLongEnough("12345678"))
	assert.False(t, PasswordLongEnough("1234567"))
}

func TestOpaqueToken(t *testing.T) {
	raw, hash, err := NewOpaqueToken()
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashOpaqueToken(raw))
	assert.False(t, strings.ContainsAny(raw, "+/="))

	other, _, err := NewOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}
