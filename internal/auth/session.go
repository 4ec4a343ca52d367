package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gwi.com/analyst-assistant/internal/history"
	"gwi.com/analyst-assistant/internal/store"
)

type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Transition reports a state change the view has to be re-rendered for.
type Transition struct {
	From, To State
}

func (t Transition) Changed() bool { return t.From != t.To }

// HistoryFactory builds the chat history for a newly authenticated identity.
type HistoryFactory func(identity string) *history.Log

// Session is one browser visitor. It starts Anonymous and only reaches
// Authenticated through a successful Login.
type Session struct {
	id         string
	creds      store.CredentialStore
	newHistory HistoryFactory
	logger     *zap.Logger

	// busy serializes actions: a submission runs to completion before the
	// next login, logout or submission on the same session starts.
	busy sync.Mutex

	mu         sync.RWMutex
	state      State
	identity   string
	generation uint64
	users      map[string]string
	history    *history.Log
}

func NewSession(id string, creds store.CredentialStore, newHistory HistoryFactory, logger *zap.Logger) *Session {
	if newHistory == nil {
		newHistory = func(string) *history.Log { return history.NewLog() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:         id,
		creds:      creds,
		newHistory: newHistory,
		logger:     logger,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Identity is empty while the session is anonymous.
func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// SignUp registers a new account. It never changes the session state.
func (s *Session) SignUp(ctx context.Context, email, password string) error {
	email = store.NormalizeEmail(email)
	if email == "" || password == "" {
		return ErrMissingField
	}

	s.busy.Lock()
	defer s.busy.Unlock()

	users, err := s.loadUsers(ctx, false)
	if err != nil {
		return err
	}
	if _, exists := users[email]; exists {
		return ErrDuplicateEmail
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.creds.AppendUser(ctx, email, hash); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Registered elsewhere since the cache was filled.
			s.invalidateUsers()
			return ErrDuplicateEmail
		}
		return err
	}

	s.mu.Lock()
	s.users[email] = hash
	s.mu.Unlock()

	s.logger.Info("account created", zap.String("email", email))
	return nil
}

// Login authenticates the session. On failure the state is left unchanged.
// Logging in while already authenticated switches identity and starts a
// fresh history.
func (s *Session) Login(ctx context.Context, email, password string) (Transition, error) {
	email = store.NormalizeEmail(email)
	from := s.State()
	if email == "" || password == "" {
		return Transition{From: from, To: from}, ErrMissingField
	}

	s.busy.Lock()
	defer s.busy.Unlock()

	hash, err := s.lookup(ctx, email)
	if err != nil {
		return Transition{From: from, To: from}, err
	}
	if hash == "" || !CheckPasswordHash(password, hash) {
		s.logger.Info("login rejected", zap.String("email", email))
		return Transition{From: from, To: from}, ErrInvalidCredentials
	}

	s.mu.Lock()
	if s.history != nil {
		s.history.Clear()
	}
	s.state = Authenticated
	s.identity = email
	s.generation++
	s.history = s.newHistory(email)
	s.mu.Unlock()

	s.logger.Info("login", zap.String("email", email))
	return Transition{From: from, To: Authenticated}, nil
}

// Logout waits for any in-flight submission, then drops the identity and
// the in-memory history. The users cache survives.
func (s *Session) Logout() Transition {
	s.busy.Lock()
	defer s.busy.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	if s.history != nil {
		s.history.Clear()
	}
	if from == Authenticated {
		s.logger.Info("logout", zap.String("email", s.identity))
	}
	s.state = Anonymous
	s.identity = ""
	s.history = nil
	s.generation++
	return Transition{From: from, To: Anonymous}
}

// Member returns the authenticated view of the session, or false when the
// visitor has not logged in. Chat operations only accept a Member.
func (s *Session) Member() (*Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated {
		return nil, false
	}
	return &Member{
		session:    s,
		identity:   s.identity,
		generation: s.generation,
		history:    s.history,
	}, true
}

// lookup finds the stored hash for email, re-reading the store once when the
// cache misses so accounts created by other sessions are visible.
func (s *Session) lookup(ctx context.Context, email string) (string, error) {
	users, err := s.loadUsers(ctx, false)
	if err != nil {
		return "", err
	}
	if hash, ok := users[email]; ok {
		return hash, nil
	}
	users, err = s.loadUsers(ctx, true)
	if err != nil {
		return "", err
	}
	return users[email], nil
}

// loadUsers fills the users cache on first use. Callers hold busy.
func (s *Session) loadUsers(ctx context.Context, refresh bool) (map[string]string, error) {
	s.mu.RLock()
	users := s.users
	s.mu.RUnlock()
	if users != nil && !refresh {
		return users, nil
	}

	loaded, err := s.creds.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		loaded = make(map[string]string)
	}

	s.mu.Lock()
	s.users = loaded
	s.mu.Unlock()
	return loaded, nil
}

func (s *Session) invalidateUsers() {
	s.mu.Lock()
	s.users = nil
	s.mu.Unlock()
}

// Member is proof that a session was authenticated when it was obtained.
type Member struct {
	session    *Session
	identity   string
	generation uint64
	history    *history.Log
}

func (m *Member) Identity() string { return m.identity }

func (m *Member) History() *history.Log { return m.history }

// Exclusive takes the session's action lock. It fails with ErrSessionEnded
// if the session logged out or switched identity since m was issued.
func (m *Member) Exclusive() (release func(), err error) {
	m.session.busy.Lock()

	m.session.mu.RLock()
	current := m.session.state == Authenticated && m.session.generation == m.generation
	m.session.mu.RUnlock()

	if !current {
		m.session.busy.Unlock()
		return nil, ErrSessionEnded
	}
	return m.session.busy.Unlock, nil
}

// Valid reports whether m still matches the session's current login.
func (m *Member) Valid() bool {
	m.session.mu.RLock()
	defer m.session.mu.RUnlock()
	return m.session.state == Authenticated && m.session.generation == m.generation
}
