package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"logima-backend/internal/auth"
)

var secret = []byte("test-secret-key-for-jwt-signing")

func TestGenerateToken_RoundTrip(t *testing.T) {
	token, err := auth.GenerateToken("user-123", secret, time.Hour)
	require.NoError(t, err)

	sub, err := auth.SubjectFromToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", sub)
}

func TestSubjectFromToken_Expired(t *testing.T) {
	token, err := auth.GenerateToken("user-123", secret, -time.Minute)
	require.NoError(t, err)

	_, err = auth.SubjectFromToken(token, secret)
	assert.True(t, errors.Is(err, auth.ErrInvalidToken))
}

func TestSubjectFromToken_WrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("user-123", secret, time.Hour)
	require.NoError(t, err)

	_, err = auth.SubjectFromToken(token, []byte("other"))
	assert.True(t, errors.Is(err, auth.ErrInvalidToken))
}

func TestSubjectFromToken_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = auth.SubjectFromToken(signed, secret)
	assert.Error(t, err)
}

func TestSubjectFromToken_MissingExpiry(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-123"})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = auth.SubjectFromToken(signed, secret)
	assert.Error(t, err)
}

func TestNewCSRFToken(t *testing.T) {
	a, err := auth.NewCSRFToken()
	require.NoError(t, err)
	b, err := auth.NewCSRFToken()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
