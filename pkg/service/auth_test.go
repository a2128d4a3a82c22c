package service

import (
	"context"
	"testing"
	"time"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/example/icecreamshop/pkg/auth"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeVerifier struct {
	identities map[string]*auth.Identity
}

func (v *fakeVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	id, ok := v.identities[token]
	if !ok {
		return nil, apperr.ErrUnauthorized
	}
	return id, nil
}

func newAuthService(t *testing.T, verifier auth.IdentityVerifier) (*AuthService, *auth.TokenManager, *gorm.DB) {
	db := newTestDB(t)
	tokens := auth.NewTokenManager("test-secret", "shop-api", time.Hour)
	return NewAuthService(db, tokens, verifier, zap.NewNop()), tokens, db
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, tokens, _ := newAuthService(t, nil)

	res, err := svc.Register(ctx, "Ana", "  Ana@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", res.User.Email)
	assert.Equal(t, models.RoleCustomer, res.User.Role)
	require.NotNil(t, res.User.PasswordHash)
	assert.NotEqual(t, "secret1", *res.User.PasswordHash)

	claims, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	_, err = svc.Register(ctx, "Ana 2", "ana@example.com", "another1")
	assert.ErrorIs(t, err, apperr.ErrDuplicateEmail)

	_, err = svc.Register(ctx, "Bia", "bia@example.com", "123")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Register(ctx, "Bia", "not-an-email", "secret1")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	login, err := svc.Login(ctx, "ANA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "ana@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	me, err := svc.Me(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", me.Name)
	_, err = svc.Me(ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAuth_GoogleLogin(t *testing.T) {
	ctx := context.Background()
	verifier := &fakeVerifier{identities: map[string]*auth.Identity{
		"new":        {Subject: "g-1", Email: "carla@example.com", EmailVerified: true, Name: "Carla"},
		"existing":   {Subject: "g-2", Email: "ana@example.com", EmailVerified: true, Name: "Ana G"},
		"no-email":   {Subject: "g-3"},
		"unverified": {Subject: "g-4", Email: "bia@example.com", Name: "Impostor"},
		"fresh":      {Subject: "g-5", Email: "dora@example.com", Name: "Dora"},
	}}
	svc, _, db := newAuthService(t, verifier)

	created, err := svc.GoogleLogin(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "Carla", created.User.Name)
	assert.Nil(t, created.User.PasswordHash)

	again, err := svc.GoogleLogin(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, again.User.ID)

	_, err = svc.Login(ctx, "carla@example.com", "anything")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "google-only accounts have no password")

	registered, err := svc.Register(ctx, "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)
	linked, err := svc.GoogleLogin(ctx, "existing")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, linked.User.ID)
	require.NotNil(t, linked.User.GoogleID)
	assert.Equal(t, "g-2", *linked.User.GoogleID)

	bia, err := svc.Register(ctx, "Bia", "bia@example.com", "secret1")
	require.NoError(t, err)
	_, err = svc.GoogleLogin(ctx, "unverified")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	me, err := svc.Me(ctx, bia.User.ID)
	require.NoError(t, err)
	assert.Nil(t, me.GoogleID, "unverified email must not link the account")

	_, err = svc.GoogleLogin(ctx, "fresh")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	var doras int64
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "dora@example.com").Count(&doras).Error)
	assert.Zero(t, doras, "unverified email must not create an account")

	_, err = svc.GoogleLogin(ctx, "no-email")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.GoogleLogin(ctx, "forged")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.GoogleLogin(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
