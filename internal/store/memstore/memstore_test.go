package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"feedback-backend/internal/models"
	"feedback-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu        sync.Mutex
	snapshots [][]models.Feedback
	cancelled error
}

func (r *recorder) listener() store.Listener[models.Feedback] {
	return store.Listener[models.Feedback]{
		OnData: func(feedbacks []models.Feedback) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.snapshots = append(r.snapshots, feedbacks)
		},
		OnCancelled: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.cancelled = err
		},
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder) last() []models.Feedback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[len(r.snapshots)-1]
}

func (r *recorder) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func TestListenDeliversFullSnapshots(t *testing.T) {
	ctx := context.Background()
	s := New()
	feedbacks := s.Feedbacks()

	var rec recorder
	sub, err := feedbacks.Listen(ctx, store.Query{UserID: "u1"}, rec.listener())
	require.NoError(t, err)
	defer sub.Close()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
	assert.Empty(t, rec.last())

	require.NoError(t, feedbacks.Put(ctx, models.Feedback{ID: "a", UserID: "u1", Text: "one", Timestamp: 1}))
	require.NoError(t, feedbacks.Put(ctx, models.Feedback{ID: "b", UserID: "u1", Text: "two", Timestamp: 2}))
	require.Eventually(t, func() bool { return len(rec.last()) == 2 }, time.Second, time.Millisecond)

	require.NoError(t, feedbacks.Delete(ctx, "a"))
	require.Eventually(t, func() bool { return len(rec.last()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "b", rec.last()[0].ID)
}

func TestListenSkipsUnrelatedChanges(t *testing.T) {
	ctx := context.Background()
	s := New()
	feedbacks := s.Feedbacks()

	var rec recorder
	sub, err := feedbacks.Listen(ctx, store.Query{UserID: "u1"}, rec.listener())
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, feedbacks.Put(ctx, models.Feedback{ID: "x", UserID: "u2"}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestCloseStopsDeliveries(t *testing.T) {
	ctx := context.Background()
	s := New()

	var rec recorder
	sub, err := s.Feedbacks().Listen(ctx, store.Query{}, rec.listener())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, s.ListenerCount())

	sub.Close()
	assert.Equal(t, 0, s.ListenerCount())
	require.NoError(t, s.Feedbacks().Put(ctx, models.Feedback{ID: "a"}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestCancelReportsOnce(t *testing.T) {
	ctx := context.Background()
	s := New()

	var rec recorder
	sub, err := s.Feedbacks().Listen(ctx, store.Query{}, rec.listener())
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)

	s.Cancel("feedbacks", errors.New("revoked"))
	require.Eventually(t, func() bool { return rec.err() != nil }, time.Second, time.Millisecond)
	assert.EqualError(t, rec.err(), "revoked")
	require.Eventually(t, func() bool { return s.ListenerCount() == 0 }, time.Second, time.Millisecond)

	require.NoError(t, s.Feedbacks().Put(ctx, models.Feedback{ID: "a"}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestPatchTextKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	feedbacks := New().Feedbacks()
	require.NoError(t, feedbacks.Put(ctx, models.Feedback{ID: "a", UserID: "u1", Text: "old", Timestamp: 42}))

	require.NoError(t, feedbacks.PatchText(ctx, "a", "new"))
	got, err := feedbacks.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.Feedback{ID: "a", UserID: "u1", Text: "new", Timestamp: 42}, *got)
}

func TestFailNextFailsOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.FailNext(OpUserPut, errors.New("boom"))

	assert.EqualError(t, s.Users().Put(ctx, models.User{UID: "u1"}), "boom")
	assert.NoError(t, s.Users().Put(ctx, models.User{UID: "u1"}))
}

func TestCredentialsRejectDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	creds := New().Credentials()
	require.NoError(t, creds.Create(ctx, &models.Credential{UID: "1", Email: "a@x.com"}))
	assert.ErrorIs(t, creds.Create(ctx, &models.Credential{UID: "2", Email: "a@x.com"}), store.ErrDuplicate)

	_, err := creds.FindByEmail(ctx, "b@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTokensRevoke(t *testing.T) {
	ctx := context.Background()
	tokens := New().Tokens()
	require.NoError(t, tokens.Create(ctx, &models.AuthToken{Token: "t1", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, tokens.Revoke(ctx, "t1"))

	got, err := tokens.FindByToken(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.IsRevoked)
	assert.ErrorIs(t, tokens.Revoke(ctx, "t2"), store.ErrNotFound)
}
