package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mines-predictor-bot/internal/config"
)

func TestJWTService_RoundTrip(t *testing.T) {
	s := NewJWTService(&config.Config{JWTSecret: "secret", JWTExpiry: time.Hour})

	token, issued, err := s.GenerateToken("admin")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.SessionID)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, issued.SessionID, claims.SessionID)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestJWTService_Expired(t *testing.T) {
	s := NewJWTService(&config.Config{JWTSecret: "secret", JWTExpiry: time.Minute})
	issuedAt := time.Now()
	s.now = func() time.Time { return issuedAt }

	token, _, err := s.GenerateToken("admin")
	require.NoError(t, err)

	s.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_WrongSecret(t *testing.T) {
	a := NewJWTService(&config.Config{JWTSecret: "one", JWTExpiry: time.Hour})
	b := NewJWTService(&config.Config{JWTSecret: "two", JWTExpiry: time.Hour})

	token, _, err := a.GenerateToken("admin")
	require.NoError(t, err)

	_, err = b.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsOtherAlgorithms(t *testing.T) {
	s := NewJWTService(&config.Config{JWTSecret: "secret", JWTExpiry: time.Hour})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: jwtIssuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             RoleAdmin,
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
