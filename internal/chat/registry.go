package chat

import "sync"

// Registry keeps the sessions of every connected client, keyed by session ID
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	newFn    func(id string) *Session
}

// NewRegistry creates sessions on demand with newFn
func NewRegistry(newFn func(id string) *Session) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		newFn:    newFn,
	}
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := r.newFn(id)
	r.sessions[id] = s
	return s
}

// CancelAll aborts every running turn, used on shutdown
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.Cancel()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
