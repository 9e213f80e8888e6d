package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/core/clock"
	appctx "fieldledger/internal/core/context"
)

func TestJWT_RoundTrip(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	svc := NewJWTService(DefaultJWTConfig("s3cret"), clk)

	token, exp, err := svc.GenerateToken(appctx.UserContext{
		UserID: "user-1",
		OrgID:  "org-1",
		OrgIDs: []string{"org-2"},
		Roles:  []string{"device"},
	})
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(30*24*time.Hour), exp)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.UserID)
	assert.Equal(t, "org-1", user.OrgID)
	assert.Equal(t, []string{"org-2"}, user.OrgIDs)
	assert.Equal(t, []string{"device"}, user.Roles)
}

func TestJWT_Rejects(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	svc := NewJWTService(JWTConfig{Secret: "s3cret", Issuer: "fieldledger", TokenTTL: time.Hour}, clk)

	token, _, err := svc.GenerateToken(appctx.UserContext{UserID: "user-1", OrgID: "org-1"})
	require.NoError(t, err)

	other := NewJWTService(JWTConfig{Secret: "other", Issuer: "fieldledger", TokenTTL: time.Hour}, clk)
	_, err = other.ValidateToken(token)
	assert.Error(t, err, "wrong secret")

	clk.Advance(2 * time.Hour)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err, "expired")

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)

	_, _, err = svc.GenerateToken(appctx.UserContext{UserID: "user-1"})
	assert.Error(t, err, "organization required")

	_, _, err = NewJWTService(JWTConfig{}, clk).GenerateToken(appctx.UserContext{UserID: "u", OrgID: "o"})
	assert.Error(t, err, "secret required")
}
