// Package store describes the document store the feedback service runs on:
// two application collections (users, feedbacks) with one-shot reads and live
// queries, plus the identity provider's credential and token records.
package store

import (
	"context"
	"errors"
	"slices"

	"feedback-backend/internal/models"

	"github.com/oklog/ulid/v2"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("document already exists")
)

// Query selects feedback documents. The zero value selects the whole collection.
type Query struct {
	UserID string
}

func (q Query) Matches(f models.Feedback) bool {
	return q.UserID == "" || f.UserID == q.UserID
}

// Listener receives live query results. OnData always carries the complete
// result set. OnCancelled is called at most once, after which the listener
// receives nothing more.
type Listener[T any] struct {
	OnData      func([]T)
	OnCancelled func(error)
}

// Subscription is a handle on an attached listener. Close detaches it and
// returns once no callback can run anymore.
type Subscription interface {
	Close()
}

type FeedbackStore interface {
	AllocateID() string
	Put(ctx context.Context, feedback models.Feedback) error
	PatchText(ctx context.Context, id, text string) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Feedback, error)
	Find(ctx context.Context, q Query) ([]models.Feedback, error)
	Listen(ctx context.Context, q Query, l Listener[models.Feedback]) (Subscription, error)
}

type UserStore interface {
	Put(ctx context.Context, user models.User) error
	Get(ctx context.Context, uid string) (*models.User, error)
	GetAll(ctx context.Context) ([]models.User, error)
	Listen(ctx context.Context, l Listener[models.User]) (Subscription, error)
}

type CredentialStore interface {
	Create(ctx context.Context, credential *models.Credential) error
	FindByEmail(ctx context.Context, email string) (*models.Credential, error)
}

type TokenStore interface {
	Create(ctx context.Context, token *models.AuthToken) error
	FindByToken(ctx context.Context, token string) (*models.AuthToken, error)
	Revoke(ctx context.Context, token string) error
}

// NewPushID allocates a time-ordered document id.
func NewPushID() string {
	return ulid.Make().String()
}

// SameFeedback reports whether two result sets hold the same documents in the
// same order.
func SameFeedback(a, b []models.Feedback) bool {
	return slices.Equal(a, b)
}

func SameUsers(a, b []models.User) bool {
	return slices.Equal(a, b)
}
