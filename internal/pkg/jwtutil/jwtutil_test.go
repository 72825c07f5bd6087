package jwtutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	signed, err := GenerateToken("secret", time.Hour, "tok-123")
	require.NoError(t, err)

	got, err := ParseToken("secret", signed)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", got)
}

func TestParseToken_Rejects(t *testing.T) {
	valid, err := GenerateToken("secret", time.Hour, "tok")
	require.NoError(t, err)
	expired, err := GenerateToken("secret", -time.Minute, "tok")
	require.NoError(t, err)
	empty, err := GenerateToken("secret", time.Hour, "")
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SessionToken: "tok"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]struct {
		secret string
		raw    string
	}{
		"wrong secret":  {"other", valid},
		"expired":       {"secret", expired},
		"empty session": {"secret", empty},
		"alg none":      {"secret", none},
		"garbage":       {"secret", "not-a-jwt"},
		"empty":         {"secret", ""},
		"truncated":     {"secret", valid[:len(valid)-4]},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(tc.secret, tc.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
