package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "storefront-test-secret"

// fixedMaker выпускает токены с заданным временем выпуска.
func fixedMaker(secret string, ttl time.Duration, issued time.Time) *MakerImpl {
	m := NewJWTMaker(secret, ttl)
	m.now = func() time.Time { return issued }
	return m
}

func TestMaker_RoundTrip(t *testing.T) {
	ttl := 120 * time.Hour
	issued := time.Now().Truncate(time.Second)
	maker := fixedMaker(testSecret, ttl, issued)

	tests := []struct {
		name   string
		userID string
		role   string
	}{
		{name: "customer", userID: "5f0c2b3e-7d41-4c55-9a1a-2f7f6d0c9e11", role: "user"},
		{name: "administrator", userID: "a1b2c3", role: "admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.userID, tt.role)
			require.NoError(t, err)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, claims.UserID)
			assert.Equal(t, tt.userID, claims.Subject)
			assert.Equal(t, tt.role, claims.Role)
			assert.True(t, claims.IssuedAt.Time.Equal(issued))
			assert.True(t, claims.ExpiresAt.Time.Equal(issued.Add(ttl)))
		})
	}
}

func TestMaker_Rejects(t *testing.T) {
	maker := NewJWTMaker(testSecret, time.Hour)
	valid, err := maker.GenerateToken("u1", "user")
	require.NoError(t, err)

	expired, err := fixedMaker(testSecret, time.Hour, time.Now().Add(-2*time.Hour)).GenerateToken("u1", "user")
	require.NoError(t, err)

	foreign, err := NewJWTMaker("another-secret", time.Hour).GenerateToken("u1", "admin")
	require.NoError(t, err)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, CustomClaims{
		UserID: "u1",
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	otherAlg, err := hs512.SignedString([]byte(testSecret))
	require.NoError(t, err)

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, CustomClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	withoutUser, err := noUser.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"empty":           "",
		"garbage":         "not-a-jwt",
		"expired":         expired,
		"foreign secret":  foreign,
		"tampered":        valid + "x",
		"other algorithm": otherAlg,
		"missing user id": withoutUser,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			claims, err := maker.ParseToken(token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestMaker_ExpiredErrorMentionsExpiry(t *testing.T) {
	maker := NewJWTMaker(testSecret, time.Hour)
	token, err := fixedMaker(testSecret, time.Minute, time.Now().Add(-time.Hour)).GenerateToken("u1", "user")
	require.NoError(t, err)

	_, err = maker.ParseToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestMaker_TTL(t *testing.T) {
	assert.Equal(t, 120*time.Hour, NewJWTMaker(testSecret, 120*time.Hour).TTL())
}
