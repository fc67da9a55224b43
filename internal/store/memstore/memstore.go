// Package memstore is an in-process document store with live queries. It backs
// the test suites and the server's memory mode.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"

	"feedback-backend/internal/models"
	"feedback-backend/internal/store"
)

// Op names a store operation that can be made to fail with FailNext.
type Op string

const (
	OpUserPut        Op = "users.put"
	OpUserGet        Op = "users.get"
	OpUserGetAll     Op = "users.getAll"
	OpUserListen     Op = "users.listen"
	OpFeedbackPut    Op = "feedbacks.put"
	OpFeedbackPatch  Op = "feedbacks.patch"
	OpFeedbackDelete Op = "feedbacks.delete"
	OpFeedbackFind   Op = "feedbacks.find"
	OpFeedbackListen Op = "feedbacks.listen"
)

const (
	usersCollection     = "users"
	feedbacksCollection = "feedbacks"
)

type Store struct {
	mu          sync.RWMutex
	users       map[string]models.User
	feedbacks   map[string]models.Feedback
	credentials map[string]models.Credential
	tokens      map[string]models.AuthToken
	failures    map[Op]error

	listenersMu sync.Mutex
	listeners   map[*listener]struct{}
}

func New() *Store {
	return &Store{
		users:       map[string]models.User{},
		feedbacks:   map[string]models.Feedback{},
		credentials: map[string]models.Credential{},
		tokens:      map[string]models.AuthToken{},
		failures:    map[Op]error{},
		listeners:   map[*listener]struct{}{},
	}
}

func (s *Store) Users() store.UserStore             { return &userStore{s} }
func (s *Store) Feedbacks() store.FeedbackStore     { return &feedbackStore{s} }
func (s *Store) Credentials() store.CredentialStore { return &credentialStore{s} }
func (s *Store) Tokens() store.TokenStore           { return &tokenStore{s} }

// FailNext makes the next call of op return err.
func (s *Store) FailNext(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) takeFailure(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err, ok := s.failures[op]
	if !ok {
		return nil
	}
	delete(s.failures, op)
	return err
}

// Cancel cancels every listener attached to the named collection ("users" or
// "feedbacks") with err, the way a backend revokes a listener.
func (s *Store) Cancel(collection string, err error) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for ln := range s.listeners {
		if ln.collection != collection {
			continue
		}
		select {
		case ln.cancelled <- err:
		default:
		}
	}
}

// ListenerCount returns the number of attached listeners.
func (s *Store) ListenerCount() int {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	return len(s.listeners)
}

type listener struct {
	collection string
	signal     chan struct{}
	cancelled  chan error
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	owner      *Store
}

func (ln *listener) Close() {
	ln.stopOnce.Do(func() { close(ln.stop) })
	<-ln.done
	ln.owner.detach(ln)
}

func (s *Store) detach(ln *listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	delete(s.listeners, ln)
}

func (s *Store) notify(collection string) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for ln := range s.listeners {
		if ln.collection != collection {
			continue
		}
		select {
		case ln.signal <- struct{}{}:
		default:
		}
	}
}

// attach starts the delivery goroutine of a live query. The first snapshot is
// delivered right away; later ones only when the result set changed.
func attach[T any](s *Store, collection string, load func() []T, equal func(a, b []T) bool, l store.Listener[T]) *listener {
	ln := &listener{
		collection: collection,
		signal:     make(chan struct{}, 1),
		cancelled:  make(chan error, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		owner:      s,
	}
	s.listenersMu.Lock()
	s.listeners[ln] = struct{}{}
	s.listenersMu.Unlock()

	go func() {
		defer close(ln.done)
		var last []T
		first := true
		for {
			select {
			case <-ln.stop:
				return
			default:
			}
			next := load()
			if first || !equal(last, next) {
				first = false
				last = next
				l.OnData(next)
			}
			select {
			case <-ln.stop:
				return
			case err := <-ln.cancelled:
				if l.OnCancelled != nil {
					l.OnCancelled(err)
				}
				s.detach(ln)
				return
			case <-ln.signal:
			}
		}
	}()
	return ln
}

type userStore struct{ s *Store }

func (u *userStore) Put(ctx context.Context, user models.User) error {
	if err := u.s.takeFailure(OpUserPut); err != nil {
		return err
	}
	u.s.mu.Lock()
	u.s.users[user.UID] = user
	u.s.mu.Unlock()
	u.s.notify(usersCollection)
	return nil
}

func (u *userStore) Get(ctx context.Context, uid string) (*models.User, error) {
	if err := u.s.takeFailure(OpUserGet); err != nil {
		return nil, err
	}
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.users[uid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (u *userStore) GetAll(ctx context.Context) ([]models.User, error) {
	if err := u.s.takeFailure(OpUserGetAll); err != nil {
		return nil, err
	}
	return u.all(), nil
}

func (u *userStore) all() []models.User {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	users := make([]models.User, 0, len(u.s.users))
	for _, user := range u.s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b models.User) int { return strings.Compare(a.UID, b.UID) })
	return users
}

func (u *userStore) Listen(ctx context.Context, l store.Listener[models.User]) (store.Subscription, error) {
	if err := u.s.takeFailure(OpUserListen); err != nil {
		return nil, err
	}
	return attach(u.s, usersCollection, u.all, store.SameUsers, l), nil
}

type feedbackStore struct{ s *Store }

func (f *feedbackStore) AllocateID() string {
	return store.NewPushID()
}

func (f *feedbackStore) Put(ctx context.Context, feedback models.Feedback) error {
	if err := f.s.takeFailure(OpFeedbackPut); err != nil {
		return err
	}
	f.s.mu.Lock()
	f.s.feedbacks[feedback.ID] = feedback
	f.s.mu.Unlock()
	f.s.notify(feedbacksCollection)
	return nil
}

// PatchText creates a bare document when id is unknown, matching a field write
// on a hosted document path.
func (f *feedbackStore) PatchText(ctx context.Context, id, text string) error {
	if err := f.s.takeFailure(OpFeedbackPatch); err != nil {
		return err
	}
	f.s.mu.Lock()
	feedback, ok := f.s.feedbacks[id]
	if !ok {
		feedback = models.Feedback{ID: id}
	}
	feedback.Text = text
	f.s.feedbacks[id] = feedback
	f.s.mu.Unlock()
	f.s.notify(feedbacksCollection)
	return nil
}

func (f *feedbackStore) Delete(ctx context.Context, id string) error {
	if err := f.s.takeFailure(OpFeedbackDelete); err != nil {
		return err
	}
	f.s.mu.Lock()
	delete(f.s.feedbacks, id)
	f.s.mu.Unlock()
	f.s.notify(feedbacksCollection)
	return nil
}

func (f *feedbackStore) Get(ctx context.Context, id string) (*models.Feedback, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()
	feedback, ok := f.s.feedbacks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &feedback, nil
}

func (f *feedbackStore) Find(ctx context.Context, q store.Query) ([]models.Feedback, error) {
	if err := f.s.takeFailure(OpFeedbackFind); err != nil {
		return nil, err
	}
	return f.find(q), nil
}

func (f *feedbackStore) find(q store.Query) []models.Feedback {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()
	feedbacks := []models.Feedback{}
	for _, feedback := range f.s.feedbacks {
		if q.Matches(feedback) {
			feedbacks = append(feedbacks, feedback)
		}
	}
	slices.SortFunc(feedbacks, func(a, b models.Feedback) int { return strings.Compare(a.ID, b.ID) })
	return feedbacks
}

func (f *feedbackStore) Listen(ctx context.Context, q store.Query, l store.Listener[models.Feedback]) (store.Subscription, error) {
	if err := f.s.takeFailure(OpFeedbackListen); err != nil {
		return nil, err
	}
	load := func() []models.Feedback { return f.find(q) }
	return attach(f.s, feedbacksCollection, load, store.SameFeedback, l), nil
}

type credentialStore struct{ s *Store }

func (c *credentialStore) Create(ctx context.Context, credential *models.Credential) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, existing := range c.s.credentials {
		if existing.Email == credential.Email {
			return store.ErrDuplicate
		}
	}
	c.s.credentials[credential.UID] = *credential
	return nil
}

func (c *credentialStore) FindByEmail(ctx context.Context, email string) (*models.Credential, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	for _, credential := range c.s.credentials {
		if credential.Email == email {
			return &credential, nil
		}
	}
	return nil, store.ErrNotFound
}

type tokenStore struct{ s *Store }

func (t *tokenStore) Create(ctx context.Context, token *models.AuthToken) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.tokens[token.Token]; ok {
		return store.ErrDuplicate
	}
	t.s.tokens[token.Token] = *token
	return nil
}

func (t *tokenStore) FindByToken(ctx context.Context, token string) (*models.AuthToken, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	authToken, ok := t.s.tokens[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &authToken, nil
}

func (t *tokenStore) Revoke(ctx context.Context, token string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	authToken, ok := t.s.tokens[token]
	if !ok {
		return store.ErrNotFound
	}
	authToken.IsRevoked = true
	t.s.tokens[token] = authToken
	return nil
}
