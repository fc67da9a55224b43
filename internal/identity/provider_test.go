package identity

import (
	"context"
	"testing"
	"time"

	"feedback-backend/internal/models"
	"feedback-backend/internal/store/memstore"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestProvider(ttl time.Duration) *Provider {
	mem := memstore.New()
	return NewProvider(mem.Credentials(), mem.Tokens(), "secret", ttl, WithHashCost(bcrypt.MinCost))
}

func TestCreateAndVerify(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(time.Hour)

	account, err := p.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, account.UID)
	assert.Equal(t, "a@x.com", account.Email)

	verified, err := p.VerifyCredential(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, account.UID, verified.UID)

	_, err = p.VerifyCredential(ctx, "a@x.com", "wrong1")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = p.VerifyCredential(ctx, "b@x.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestCreateAccountErrors(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(time.Hour)

	_, err := p.CreateAccount(ctx, "nope", "secret1")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = p.CreateAccount(ctx, "a@x.com", "12345")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = p.CreateAccount(ctx, "a@x.com", "123456")
	require.NoError(t, err)
	_, err = p.CreateAccount(ctx, "a@x.com", "123456")
	assert.ErrorIs(t, err, ErrEmailInUse)
	assert.True(t, IsAuthError(err))
}

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(time.Hour)

	before := time.Now()
	token, expiresAt, err := p.IssueToken(ctx, "sess-1", "uid-1", models.RoleUser)
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(time.Hour), expiresAt, time.Second)

	claims, err := p.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID())
	assert.Equal(t, "uid-1", claims.UID)
	assert.Equal(t, models.RoleUser, claims.Role)

	require.NoError(t, p.SignOut(ctx, "sess-1"))
	_, err = p.VerifyToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// signing out again, or an unknown session, is fine
	assert.NoError(t, p.SignOut(ctx, "sess-1"))
	assert.NoError(t, p.SignOut(ctx, "sess-2"))
}

func TestVerifyTokenRejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(time.Hour)
	_, _, err := p.IssueToken(ctx, "sess-1", "uid-1", models.RoleUser)
	require.NoError(t, err)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UID:              "uid-1",
		Role:             models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{ID: "sess-1"},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = p.VerifyToken(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(-time.Minute)
	token, _, err := p.IssueToken(ctx, "sess-1", "", models.RoleAdmin)
	require.NoError(t, err)

	_, err = p.VerifyToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
