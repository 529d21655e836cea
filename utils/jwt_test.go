package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManagerRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret")

	token, err := m.GenerateToken("user-1", "instructor", time.Hour)
	require.NoError(t, err)

	claims, err := m.ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "instructor", claims.Role)
}

func TestTokenManagerRejects(t *testing.T) {
	m := NewTokenManager("test-secret")

	expired, err := m.GenerateToken("user-1", "student", -time.Minute)
	require.NoError(t, err)
	_, err = m.ParseClaims(expired)
	assert.Error(t, err)

	foreign, err := NewTokenManager("other-secret").GenerateToken("user-1", "admin", time.Hour)
	require.NoError(t, err)
	_, err = m.ParseClaims(foreign)
	assert.Error(t, err)

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin", "exp": time.Now().Add(time.Hour).Unix()})
	signed, err := noSub.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = m.ParseClaims(signed)
	assert.ErrorIs(t, err, ErrMissingSubject)

	_, err = m.ParseClaims("not-a-jwt")
	assert.Error(t, err)
}

func TestTokenManagerEmptySecret(t *testing.T) {
	m := NewTokenManager("")

	_, err := m.GenerateToken("anyone", "admin", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)

	// A token signed with an empty key must not pass.
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "anyone",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := forged.SignedString([]byte(""))
	require.NoError(t, err)

	claims, err := m.ParseClaims(signed)
	assert.ErrorIs(t, err, ErrEmptySecret)
	assert.Nil(t, claims)
}
