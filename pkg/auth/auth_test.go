package auth

import (
	"context"
	"testing"
	"time"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", "shop-api", time.Hour)

	token, err := m.Issue(&models.User{ID: 7, Role: models.RoleManager})
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, models.RoleManager, claims.Role)
	assert.Equal(t, "shop-api", claims.Issuer)
}

func TestTokenExpired(t *testing.T) {
	m := NewTokenManager("secret", "shop-api", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := m.Issue(&models.User{ID: 1, Role: models.RoleCustomer})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(token)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Contains(t, err.Error(), "expired")
}

func TestTokenRejectsForeignSignatureAndIssuer(t *testing.T) {
	issuer := NewTokenManager("secret", "shop-api", time.Hour)
	token, err := issuer.Issue(&models.User{ID: 1, Role: models.RoleCustomer})
	require.NoError(t, err)

	_, err = NewTokenManager("other", "shop-api", time.Hour).Parse(token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = NewTokenManager("secret", "someone-else", time.Hour).Parse(token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)

	ok, err := CheckPassword(hash, "s3cret!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGoogleVerifierRequiresClientID(t *testing.T) {
	_, err := NewGoogleVerifier("").Verify(context.Background(), "token")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
