// Package identity is the credential side of the service: account creation,
// password verification and session tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"feedback-backend/internal/models"
	"feedback-backend/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type Account struct {
	UID   string
	Email string
}

// Claims are carried by every session token. The token id is the session id.
type Claims struct {
	UID  string      `json:"uid,omitempty"`
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) SessionID() string {
	return c.ID
}

type Provider struct {
	credentials store.CredentialStore
	tokens      store.TokenStore
	secret      []byte
	tokenTTL    time.Duration
	hashCost    int
}

type Option func(*Provider)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(p *Provider) { p.hashCost = cost }
}

func NewProvider(credentials store.CredentialStore, tokens store.TokenStore, secret string, tokenTTL time.Duration, opts ...Option) *Provider {
	p := &Provider{
		credentials: credentials,
		tokens:      tokens,
		secret:      []byte(secret),
		tokenTTL:    tokenTTL,
		hashCost:    bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	credential := &models.Credential{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := p.credentials.Create(ctx, credential); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &Account{UID: credential.UID, Email: credential.Email}, nil
}

func (p *Provider) VerifyCredential(ctx context.Context, email, password string) (*Account, error) {
	credential, err := p.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(credential.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	return &Account{UID: credential.UID, Email: credential.Email}, nil
}

// IssueToken signs a session token and records it so it can be revoked. It
// returns the token with its expiry.
func (p *Provider) IssueToken(ctx context.Context, sessionID, uid string, role models.Role) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(p.tokenTTL)
	claims := &Claims{
		UID:  uid,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	if err := p.tokens.Create(ctx, &models.AuthToken{
		Token:     sessionID,
		UID:       uid,
		Role:      role,
		ExpiresAt: expiresAt,
	}); err != nil {
		return "", time.Time{}, fmt.Errorf("record token: %w", err)
	}
	return tokenString, expiresAt, nil
}

func (p *Provider) VerifyToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	record, err := p.tokens.FindByToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	if record.IsRevoked || record.IsExpired() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignOut revokes the token of sessionID. Signing out twice is not an error.
func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	if err := p.tokens.Revoke(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
