package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, "SUPERVISOR", 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	claims, err := ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
	assert.Equal(t, "SUPERVISOR", claims.Role)
}

func TestParseAccessTokenRejects(t *testing.T) {
	good, err := NewAccessToken("secret", 1, "USER", 15)
	require.NoError(t, err)
	expired, err := NewAccessToken("secret", 1, "USER", -1)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	badSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "abc"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"wrong secret": good.Token,
		"expired":      expired.Token,
		"alg none":     none,
		"bad subject":  badSub,
		"garbage":      "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			secret := "secret"
			if name == "wrong secret" {
				secret = "other"
			}
			_, err := ParseAccessToken(secret, raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRefreshToken(t *testing.T) {
	rt, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), rt.Exp, 5*time.Second)

	h := HashRefreshRaw(rt.Raw)
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashRefreshRaw(rt.Raw))
	assert.NotEqual(t, h, HashRefreshRaw(rt.Raw+"x"))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "hunter22"))
	assert.False(t, VerifyPassword(hash, "hunter23"))

	assert.False(t, NeedsRehash(hash, bcrypt.MinCost))
	assert.True(t, NeedsRehash(hash, bcrypt.MinCost+1))
	assert.False(t, NeedsRehash("not-a-hash", bcrypt.MinCost))

	_, err = HashPassword(strings.Repeat("x", 73), bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestNewOTPFormat(t *testing.T) {
	seenLeadingZero := false
	for i := 0; i < 2000; i++ {
		code, err := NewOTP()
		require.NoError(t, err)
		require.True(t, IsOTPFormat(code), code)
		if strings.HasPrefix(code, "0") {
			seenLeadingZero = true
		}
	}
	// P(no leading zero in 2000 draws) = 0.9^2000, effectively zero
	assert.True(t, seenLeadingZero)
}

func TestIsOTPFormat(t *testing.T) {
	assert.True(t, IsOTPFormat("000000"))
	assert.True(t, IsOTPFormat("482913"))
	assert.False(t, IsOTPFormat("48291"))
	assert.False(t, IsOTPFormat("4829134"))
	assert.False(t, IsOTPFormat("48a913"))
	assert.False(t, IsOTPFormat(" 48291"))
}
