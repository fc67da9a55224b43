// Package session holds the per-client state of the feedback service: who is
// signed in, the live feedback lists and the busy/error surface. Mutations go
// through the adapter methods; the lists are written only by live-query
// callbacks.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"feedback-backend/internal/identity"
	"feedback-backend/internal/models"
	"feedback-backend/internal/notify"
	"feedback-backend/internal/store"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAdminEmail    = "admin"
	DefaultAdminPassword = "admin"
	DefaultJoinDebounce  = 50 * time.Millisecond
)

type Action string

const (
	ActionRegister Action = "register"
	ActionLogin    Action = "login"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
)

type queryKind int

const (
	queryNone queryKind = iota
	queryMine
	queryAll
)

func (q queryKind) String() string {
	switch q {
	case queryMine:
		return "mine"
	case queryAll:
		return "all"
	default:
		return "none"
	}
}

type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (*identity.Account, error)
	VerifyCredential(ctx context.Context, email, password string) (*identity.Account, error)
	IssueToken(ctx context.Context, sessionID, uid string, role models.Role) (string, time.Time, error)
	SignOut(ctx context.Context, sessionID string) error
}

type Deps struct {
	Identity  IdentityProvider
	Users     store.UserStore
	Feedbacks store.FeedbackStore
	// Optional.
	Notifier notify.Notifier
	Mailer   notify.Mailer
}

type Options struct {
	AdminEmail    string
	AdminPassword string
	JoinDebounce  time.Duration
}

func (o Options) withDefaults() Options {
	if o.AdminEmail == "" {
		o.AdminEmail = DefaultAdminEmail
	}
	if o.AdminPassword == "" {
		o.AdminPassword = DefaultAdminPassword
	}
	if o.JoinDebounce <= 0 {
		o.JoinDebounce = DefaultJoinDebounce
	}
	return o
}

// State is who the session is signed in as. The zero value is anonymous.
// Admin sessions carry no user.
type State struct {
	Role models.Role
	User *models.User
}

func (s State) Authenticated() bool {
	return s.Role != ""
}

func (s State) IsAdmin() bool {
	return s.Role == models.RoleAdmin
}

type Session struct {
	id   string
	deps Deps
	opts Options

	// serializes subscribe and teardown
	subMu sync.Mutex

	mu      sync.Mutex
	state   State
	busy    map[Action]bool
	lastErr string
	mine    []models.Feedback
	all     []models.FeedbackWithUser
	query   queryKind
	mineUID string
	gen     uint64
	subs    []store.Subscription
	joiner  *joiner

	obsMu     sync.Mutex
	observers map[chan View]struct{}
}

func New(id string, deps Deps, opts Options) *Session {
	return &Session{
		id:        id,
		deps:      deps,
		opts:      opts.withDefaults(),
		busy:      map[Action]bool{},
		observers: map[chan View]struct{}{},
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Busy(action Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[action]
}

// ClearError empties the error slot, as typing into a form does.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.broadcast()
}

// begin marks action busy and clears the error slot. The returned func must be
// deferred; it clears the busy flag and records err, if any.
func (s *Session) begin(action Action) (func(err error), error) {
	s.mu.Lock()
	if s.busy[action] {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.busy[action] = true
	s.lastErr = ""
	s.mu.Unlock()
	s.broadcast()

	return func(err error) {
		s.mu.Lock()
		delete(s.busy, action)
		if err != nil {
			s.lastErr = err.Error()
		}
		s.mu.Unlock()
		if err != nil {
			glog.Errorf("[session]%s %s error = %s\n", s.id, action, err)
		}
		s.broadcast()
	}, nil
}

func (s *Session) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	glog.Errorf("[session]%s error = %s\n", s.id, err)
	s.broadcast()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.broadcast()
}

func authKind(err error) Kind {
	if identity.IsAuthError(err) {
		return KindAuth
	}
	return KindUnknown
}

// Register creates the account, writes users/{uid} and signs the session in.
// If the profile write fails the account stays behind without a profile.
func (s *Session) Register(ctx context.Context, email, password, username string) (user *models.User, err error) {
	end, err := s.begin(ActionRegister)
	if err != nil {
		return nil, err
	}
	defer func() { end(err) }()

	account, err := s.deps.Identity.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, wrap(authKind(err), "register", err)
	}
	profile := models.User{UID: account.UID, Email: email, Username: username}
	if err := s.deps.Users.Put(ctx, profile); err != nil {
		return nil, wrap(KindStoreWrite, "register", err)
	}

	s.setState(State{Role: models.RoleUser, User: &profile})
	if s.deps.Mailer != nil {
		go func() {
			if err := s.deps.Mailer.SendWelcome(context.Background(), profile); err != nil {
				glog.Errorf("[session]%s welcome mail error = %s\n", s.id, err)
			}
		}()
	}
	s.refresh(s.SubscribeMine(ctx, profile.UID))
	return &profile, nil
}

// Login signs the session in. The admin pair is matched before the identity
// provider is consulted and never reaches it.
func (s *Session) Login(ctx context.Context, email, password string) (state State, err error) {
	end, err := s.begin(ActionLogin)
	if err != nil {
		return State{}, err
	}
	defer func() { end(err) }()

	if email == s.opts.AdminEmail && password == s.opts.AdminPassword {
		state = State{Role: models.RoleAdmin}
		s.setState(state)
		if err := s.SubscribeAll(ctx); err != nil {
			return state, err
		}
		return state, nil
	}

	account, err := s.deps.Identity.VerifyCredential(ctx, email, password)
	if err != nil {
		return State{}, wrap(authKind(err), "login", err)
	}
	state = State{Role: models.RoleUser, User: s.loadProfile(ctx, account.UID, account.Email)}
	s.setState(state)
	if err := s.SubscribeMine(ctx, account.UID); err != nil {
		return state, err
	}
	return state, nil
}

// Restore signs the session back in from a verified token.
func (s *Session) Restore(ctx context.Context, claims *identity.Claims) error {
	if claims.Role == models.RoleAdmin {
		s.setState(State{Role: models.RoleAdmin})
		return s.SubscribeAll(ctx)
	}
	s.setState(State{Role: models.RoleUser, User: s.loadProfile(ctx, claims.UID, "")})
	return s.SubscribeMine(ctx, claims.UID)
}

// loadProfile reads users/{uid}. The profile is display data only, so a missing
// document falls back to what the account knows.
func (s *Session) loadProfile(ctx context.Context, uid, email string) *models.User {
	profile, err := s.deps.Users.Get(ctx, uid)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			glog.Warningf("[session]%s profile %s error = %s\n", s.id, uid, err)
		}
		return &models.User{UID: uid, Email: email}
	}
	return profile
}

// Logout tears down every subscription, empties both lists and signs out.
func (s *Session) Logout(ctx context.Context) error {
	s.subMu.Lock()
	s.closeSubscriptions()
	s.mu.Lock()
	s.state = State{}
	s.mine = nil
	s.all = nil
	s.query = queryNone
	s.mineUID = ""
	s.mu.Unlock()
	s.subMu.Unlock()
	s.broadcast()

	if err := s.deps.Identity.SignOut(ctx, s.id); err != nil {
		err = wrap(KindAuth, "logout", err)
		s.recordError(err)
		return err
	}
	return nil
}

// Create writes a new feedback owned by the signed-in user.
func (s *Session) Create(ctx context.Context, text string) (feedback *models.Feedback, err error) {
	end, err := s.begin(ActionCreate)
	if err != nil {
		return nil, err
	}
	defer func() { end(err) }()

	state := s.State()
	if state.Role != models.RoleUser || state.User == nil {
		return nil, ErrNotAuthenticated
	}

	created := models.Feedback{
		ID:        s.deps.Feedbacks.AllocateID(),
		UserID:    state.User.UID,
		Text:      text,
		Timestamp: models.NowMillis(),
	}
	if err := s.deps.Feedbacks.Put(ctx, created); err != nil {
		return nil, wrap(KindStoreWrite, "create", err)
	}

	if s.deps.Notifier != nil {
		username := state.User.Username
		go func() {
			if err := s.deps.Notifier.Publish(context.Background(), notify.FeedbackMessage(username, text)); err != nil {
				glog.Errorf("[session]%s publish error = %s\n", s.id, err)
			}
		}()
	}
	s.refresh(s.SubscribeMine(ctx, created.UserID))
	return &created, nil
}

// Update rewrites the text of a feedback. Owner and timestamp are untouched and
// ownership is not checked.
func (s *Session) Update(ctx context.Context, id, text string) (err error) {
	end, err := s.begin(ActionUpdate)
	if err != nil {
		return err
	}
	defer func() { end(err) }()

	if !s.State().Authenticated() {
		return ErrNotAuthenticated
	}
	if err := s.deps.Feedbacks.PatchText(ctx, id, text); err != nil {
		return wrap(KindStoreWrite, "update", err)
	}
	s.resubscribe(ctx)
	return nil
}

func (s *Session) Delete(ctx context.Context, id string) (err error) {
	end, err := s.begin(ActionDelete)
	if err != nil {
		return err
	}
	defer func() { end(err) }()

	if !s.State().Authenticated() {
		return ErrNotAuthenticated
	}
	if err := s.deps.Feedbacks.Delete(ctx, id); err != nil {
		return wrap(KindStoreDelete, "delete", err)
	}
	s.resubscribe(ctx)
	return nil
}

// resubscribe re-issues whichever query the session is on.
func (s *Session) resubscribe(ctx context.Context) {
	s.mu.Lock()
	query := s.query
	state := s.state
	s.mu.Unlock()

	switch {
	case query == queryAll:
		s.refresh(s.SubscribeAll(ctx))
	case query == queryMine && state.User != nil:
		s.refresh(s.SubscribeMine(ctx, state.User.UID))
	}
}

// refresh records the error of a re-subscribe that follows a successful
// mutation. A session signed out in the meantime has nothing to refresh.
func (s *Session) refresh(err error) {
	if err != nil && !errors.Is(err, ErrNotAuthenticated) {
		s.recordError(err)
	}
}

// SubscribeMine replaces the active subscription with a live query on the
// feedback owned by uid.
func (s *Session) SubscribeMine(ctx context.Context, uid string) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if !s.State().Authenticated() {
		return ErrNotAuthenticated
	}
	gen := s.resetSubscriptions(queryMine, uid)
	sub, err := s.deps.Feedbacks.Listen(ctx, store.Query{UserID: uid}, store.Listener[models.Feedback]{
		OnData: func(feedbacks []models.Feedback) {
			s.deliverMine(gen, feedbacks)
		},
		OnCancelled: func(err error) {
			s.cancelled(gen, err)
		},
	})
	if err != nil {
		return wrap(KindStoreRead, "subscribe", err)
	}
	s.keep(gen, nil, sub)
	return nil
}

// SubscribeAll replaces the active subscription with live queries on both
// collections, joined whenever either of them changes.
func (s *Session) SubscribeAll(ctx context.Context) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if !s.State().Authenticated() {
		return ErrNotAuthenticated
	}
	gen := s.resetSubscriptions(queryAll, "")
	j := newJoiner(s.opts.JoinDebounce, func(rows []models.FeedbackWithUser) {
		s.deliverAll(gen, rows)
	})

	var feedbackSub, userSub store.Subscription
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		feedbackSub, err = s.deps.Feedbacks.Listen(gctx, store.Query{}, store.Listener[models.Feedback]{
			OnData: j.setFeedbacks,
			OnCancelled: func(err error) {
				s.cancelled(gen, err)
			},
		})
		return err
	})
	g.Go(func() (err error) {
		// the joiner keeps the last users snapshot if this stream goes away
		userSub, err = s.deps.Users.Listen(gctx, store.Listener[models.User]{
			OnData: j.setUsers,
			OnCancelled: func(err error) {
				s.cancelled(gen, err)
			},
		})
		return err
	})
	if err := g.Wait(); err != nil {
		for _, sub := range []store.Subscription{feedbackSub, userSub} {
			if sub != nil {
				sub.Close()
			}
		}
		j.stop()
		return wrap(KindStoreRead, "subscribe", err)
	}
	s.keep(gen, j, feedbackSub, userSub)
	return nil
}

// resetSubscriptions closes the current handles and starts a new generation.
// A list the new query does not feed is emptied; re-subscribing the same query
// keeps it until the first delivery. Requires subMu.
func (s *Session) resetSubscriptions(query queryKind, uid string) uint64 {
	s.closeSubscriptions()
	s.mu.Lock()
	defer s.mu.Unlock()
	if query != queryMine || uid != s.mineUID {
		s.mine = nil
	}
	if query != queryAll {
		s.all = nil
	}
	s.query = query
	s.mineUID = uid
	return s.gen
}

// closeSubscriptions requires subMu. It must not run under mu: closing waits
// for delivery callbacks, which take mu.
func (s *Session) closeSubscriptions() {
	s.mu.Lock()
	subs := s.subs
	j := s.joiner
	s.subs = nil
	s.joiner = nil
	s.gen++
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	if j != nil {
		j.stop()
	}
	if len(subs) > 0 {
		glog.V(2).Infof("[session]%s closed %d subscriptions\n", s.id, len(subs))
	}
}

func (s *Session) keep(gen uint64, j *joiner, subs ...store.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = subs
	s.joiner = j
	glog.V(2).Infof("[session]%s subscribed %s gen %d\n", s.id, s.query, gen)
}

func (s *Session) deliverMine(gen uint64, feedbacks []models.Feedback) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.mine = feedbacks
	s.mu.Unlock()
	s.broadcast()
}

func (s *Session) deliverAll(gen uint64, rows []models.FeedbackWithUser) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.all = rows
	s.mu.Unlock()
	s.broadcast()
}

// cancelled reports a live query revoked by the store. The last delivered
// lists stay as they are.
func (s *Session) cancelled(gen uint64, err error) {
	s.mu.Lock()
	current := gen == s.gen
	s.mu.Unlock()
	if current {
		s.recordError(wrap(KindStoreRead, "listen", err))
	}
}

// Close releases every subscription without signing out. Used on shutdown.
func (s *Session) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closeSubscriptions()
}

// View is a read-only snapshot of the session, lists sorted newest first.
type View struct {
	SessionID  string                    `json:"session_id"`
	Role       models.Role               `json:"role,omitempty"`
	User       *models.User              `json:"user,omitempty"`
	Busy       bool                      `json:"busy"`
	Pending    []Action                  `json:"pending,omitempty"`
	Error      string                    `json:"error,omitempty"`
	Subscribed string                    `json:"subscribed"`
	Mine       []models.Feedback         `json:"mine"`
	All        []models.FeedbackWithUser `json:"all"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		SessionID:  s.id,
		Role:       s.state.Role,
		Error:      s.lastErr,
		Subscribed: s.query.String(),
		Mine:       SortFeedback(s.mine),
		All:        SortFeedbackWithUser(s.all),
	}
	if s.state.User != nil {
		user := *s.state.User
		v.User = &user
	}
	for action := range s.busy {
		v.Pending = append(v.Pending, action)
	}
	slices.Sort(v.Pending)
	v.Busy = len(v.Pending) > 0
	if v.Mine == nil {
		v.Mine = []models.Feedback{}
	}
	if v.All == nil {
		v.All = []models.FeedbackWithUser{}
	}
	return v
}

// Observe streams a view on every change, starting with the current one.
// Slow readers only see the latest view. The channel closes with ctx.
func (s *Session) Observe(ctx context.Context) <-chan View {
	ch := make(chan View, 1)
	s.obsMu.Lock()
	s.observers[ch] = struct{}{}
	ch <- s.View()
	s.obsMu.Unlock()

	go func() {
		<-ctx.Done()
		s.obsMu.Lock()
		delete(s.observers, ch)
		close(ch)
		s.obsMu.Unlock()
	}()
	return ch
}

func (s *Session) broadcast() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	if len(s.observers) == 0 {
		return
	}
	v := s.View()
	for ch := range s.observers {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
