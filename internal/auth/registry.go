package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gwi.com/analyst-assistant/internal/store"
)

type registryEntry struct {
	session  *Session
	lastSeen time.Time
}

type RegistryOption func(*Registry)

// WithAnonymousTTL sets how long a session that never logged in may stay
// idle. It never exceeds the registry TTL.
func WithAnonymousTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) { r.anonTTL = ttl }
}

// Registry keeps the live sessions of the process. Sessions idle for longer
// than their TTL are evicted lazily. Anonymous sessions use the shorter
// anonymous TTL, so clients that drop the cookie cannot pile them up.
type Registry struct {
	creds      store.CredentialStore
	newHistory HistoryFactory
	ttl        time.Duration
	anonTTL    time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*registryEntry
}

func NewRegistry(creds store.CredentialStore, newHistory HistoryFactory, ttl time.Duration, logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		creds:      creds,
		newHistory: newHistory,
		ttl:        ttl,
		anonTTL:    15 * time.Minute,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*registryEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.anonTTL <= 0 || r.anonTTL > r.ttl {
		r.anonTTL = r.ttl
	}
	return r
}

// Create starts a new anonymous session.
func (r *Registry) Create() *Session {
	id := uuid.New().String()
	sess := NewSession(id, r.creds, r.newHistory, r.logger.With(zap.String("session", id)))

	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()
	r.sessions[id] = &registryEntry{session: sess, lastSeen: r.now()}
	return sess
}

// Get returns a live session and marks it as seen.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	now := r.now()
	if r.expired(entry, now) {
		delete(r.sessions, id)
		return nil, false
	}
	entry.lastSeen = now
	return entry.session, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// expired checks the idle time against the session's current state, so a
// login extends the allowance without touching the entry.
func (r *Registry) expired(entry *registryEntry, now time.Time) bool {
	ttl := r.anonTTL
	if entry.session.State() == Authenticated {
		ttl = r.ttl
	}
	return !now.Before(entry.lastSeen.Add(ttl))
}

func (r *Registry) evictLocked() {
	now := r.now()
	for id, entry := range r.sessions {
		if r.expired(entry, now) {
			delete(r.sessions, id)
		}
	}
}
