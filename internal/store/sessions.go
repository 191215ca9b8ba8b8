package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"intentdash/internal/cache"
	"intentdash/internal/log"
)

// Factory builds the store for a new session.
type Factory func(sessionID string) *IntentStore

// Registry owns one IntentStore per session. Sessions expire after ttl of
// inactivity or when evicted as least recently used, and their state is lost.
type Registry struct {
	mu       sync.Mutex
	sessions *cache.LRUCache[*IntentStore]
	factory  Factory
	newID    func() string
	logger   *log.Logger
}

func NewRegistry(maxSessions int, ttl time.Duration, factory Factory, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Discard()
	}
	return &Registry{
		sessions: cache.NewLRUCache[*IntentStore](maxSessions, ttl),
		factory:  factory,
		newID:    uuid.NewString,
		logger:   logger.WithComponent(log.ComponentSessions),
	}
}

// Cleaner exposes the underlying cache for periodic expiry.
func (r *Registry) Cleaner() cache.Cleaner {
	return r.sessions
}

// Get returns the live store for id and extends its lifetime.
func (r *Registry) Get(id string) (*IntentStore, bool) {
	if id == "" {
		return nil, false
	}
	s, ok := r.sessions.Get(id)
	if ok {
		r.sessions.Touch(id)
	}
	return s, ok
}

// Resolve returns the store for id, starting a new session when id is empty
// or no longer live. The returned id is the one to hand back to the client.
func (r *Registry) Resolve(id string) (*IntentStore, string, bool) {
	if s, ok := r.Get(id); ok {
		return s, id, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another request may have started the session meanwhile.
	if s, ok := r.Get(id); ok {
		return s, id, false
	}

	newID := r.newID()
	s := r.factory(newID)
	r.sessions.Set(newID, s)
	r.logger.Info("Session started", log.FieldSessionID, newID, "active_sessions", r.sessions.Size())
	return s, newID, true
}

// End discards the session and its state.
func (r *Registry) End(id string) {
	if id == "" {
		return
	}
	r.sessions.Delete(id)
	r.logger.Info("Session ended", log.FieldSessionID, id)
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Size()
}
