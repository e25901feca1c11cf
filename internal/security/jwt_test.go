package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "apiresource/internal/core/context"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, exp, err := svc.GenerateAccessToken(appctx.Caller{
		UserID:  "42",
		Email:   "ann@example.com",
		Roles:   []string{"editor"},
		IsAdmin: true,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	caller, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", caller.UserID)
	assert.Equal(t, "ann@example.com", caller.Email)
	assert.Equal(t, []string{"editor"}, caller.Roles)
	assert.True(t, caller.IsAdmin)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	other := NewJWTService(DefaultJWTConfig("other"))
	foreign, _, err := other.GenerateAccessToken(appctx.Caller{UserID: "1"})
	require.NoError(t, err)

	cfg := DefaultJWTConfig("secret")
	cfg.AccessTokenTTL = -time.Minute
	expired, _, err := NewJWTService(cfg).GenerateAccessToken(appctx.Caller{UserID: "1"})
	require.NoError(t, err)

	cfg = DefaultJWTConfig("secret")
	cfg.Issuer = "someone-else"
	wrongIssuer, _, err := NewJWTService(cfg).GenerateAccessToken(appctx.Caller{UserID: "1"})
	require.NoError(t, err)

	noSubject, _, err := svc.GenerateAccessToken(appctx.Caller{})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "iss": "apiresource"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      expired,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"alg none":     none,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}
