package session

import (
	"sync"
	"time"

	"fc-troll-detector/internal/metrics"
)

// Registry holds live sessions until they have been idle for ttl.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	s        *Session
	lastSeen time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Registry{ttl: ttl, now: time.Now, sessions: make(map[string]*entry)}
}

// Put registers s.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = &entry{s: s, lastSeen: r.now()}
	metrics.SessionsActive.Set(float64(len(r.sessions)))
}

// Get returns the session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.s, true
}

// Expire drops sessions idle for longer than the ttl at now.
func (r *Registry) Expire(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.sessions, id)
			n++
		}
	}
	metrics.SessionsActive.Set(float64(len(r.sessions)))
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
