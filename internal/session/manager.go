package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"feedback-backend/internal/identity"
	"feedback-backend/internal/models"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

var ErrUnknownSession = errors.New("session not found")

// DefaultSweepInterval is how often Reap looks for sessions whose token has
// expired.
const DefaultSweepInterval = time.Minute

// entry is a held session. ready closes once the session is signed in, so
// lookups racing a restore wait for it instead of seeing an anonymous session.
type entry struct {
	session   *Session
	ready     chan struct{}
	expiresAt time.Time
}

// Manager owns the sessions of every connected client, keyed by the id carried
// in their token.
type Manager struct {
	deps Deps
	opts Options

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewManager(deps Deps, opts Options) *Manager {
	return &Manager{
		deps:     deps,
		opts:     opts,
		sessions: map[string]*entry{},
	}
}

// Register signs up through a fresh session and returns it with its token.
func (m *Manager) Register(ctx context.Context, email, password, username string) (*Session, string, error) {
	s := New(uuid.NewString(), m.deps, m.opts)
	user, err := s.Register(ctx, email, password, username)
	if err != nil {
		s.Close()
		return nil, "", err
	}
	return m.admit(ctx, s, user.UID, models.RoleUser)
}

// Login signs in through a fresh session and returns it with its token.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, string, error) {
	s := New(uuid.NewString(), m.deps, m.opts)
	state, err := s.Login(ctx, email, password)
	if !state.Authenticated() {
		s.Close()
		return nil, "", err
	}
	if err != nil {
		// signed in, but the first subscription failed; it shows in the view
		glog.Warningf("[sessions]%s login subscribe error = %s\n", s.ID(), err)
	}
	uid := ""
	if state.User != nil {
		uid = state.User.UID
	}
	return m.admit(ctx, s, uid, state.Role)
}

func (m *Manager) admit(ctx context.Context, s *Session, uid string, role models.Role) (*Session, string, error) {
	token, expiresAt, err := m.deps.Identity.IssueToken(ctx, s.ID(), uid, role)
	if err != nil {
		s.Close()
		return nil, "", err
	}
	ready := make(chan struct{})
	close(ready)
	m.mu.Lock()
	m.sessions[s.ID()] = &entry{session: s, ready: ready, expiresAt: expiresAt}
	m.mu.Unlock()
	glog.Infof("[sessions]%s admitted role %s\n", s.ID(), role)
	m.Sweep(time.Now())
	return s, token, nil
}

// Lookup returns the session behind verified claims, restoring it when the
// process no longer holds it. Concurrent lookups of a session being restored
// wait for the restore to finish.
func (m *Manager) Lookup(ctx context.Context, claims *identity.Claims) (*Session, error) {
	id := claims.SessionID()
	if id == "" {
		return nil, ErrUnknownSession
	}
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		e = &entry{session: New(id, m.deps, m.opts), ready: make(chan struct{})}
		if claims.ExpiresAt != nil {
			e.expiresAt = claims.ExpiresAt.Time
		}
		m.sessions[id] = e
	}
	m.mu.Unlock()

	if ok {
		select {
		case <-e.ready:
			return e.session, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	defer close(e.ready)
	if err := e.session.Restore(ctx, claims); err != nil {
		e.session.recordError(err)
	}
	glog.Infof("[sessions]%s restored role %s\n", id, claims.Role)
	return e.session, nil
}

// Logout signs the session out and forgets it. A session this process does
// not hold still has its token revoked.
func (m *Manager) Logout(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return m.deps.Identity.SignOut(ctx, id)
	}
	<-e.ready
	return e.session.Logout(ctx)
}

// Sweep forgets the sessions whose token expired before now and releases
// their subscriptions. It returns how many were evicted.
func (m *Manager) Sweep(now time.Time) int {
	var expired []*entry
	m.mu.Lock()
	for id, e := range m.sessions {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			expired = append(expired, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range expired {
		<-e.ready
		e.session.Close()
		glog.V(1).Infof("[sessions]%s evicted, token expired\n", e.session.ID())
	}
	return len(expired)
}

// Reap sweeps expired sessions every interval until ctx is done.
func (m *Manager) Reap(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				glog.Infof("[sessions]evicted %d expired sessions\n", n)
			}
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close releases the subscriptions of every session. Tokens stay valid and
// sessions are restored on the next request.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*entry{}
	m.mu.Unlock()
	for _, e := range sessions {
		<-e.ready
		e.session.Close()
	}
}
