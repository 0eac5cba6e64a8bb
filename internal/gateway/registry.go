package gateway

import (
	"sync"
	"time"
)

// Registry tracks which users currently hold live, authenticated connections.
// A user may hold several at once (multiple tabs or devices); the user counts
// as online while at least one remains. State is purely in-memory and per
// process: nothing here survives a restart, clients rebuild it by
// reauthenticating.
type Registry struct {
	mu sync.RWMutex

	// userConns maps user id -> set of connection ids
	userConns map[string]map[string]struct{}

	// connUsers maps connection id -> owning user id
	connUsers map[string]string

	// lastSeen maps user id -> last liveness signal
	lastSeen map[string]time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		userConns: make(map[string]map[string]struct{}),
		connUsers: make(map[string]string),
		lastSeen:  make(map[string]time.Time),
	}
}

// Register binds a connection to a user. Returns true when this is the
// user's first live connection, i.e. the user just came online.
func (r *Registry) Register(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.userConns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.userConns[userID] = set
	}
	set[connID] = struct{}{}
	r.connUsers[connID] = userID
	r.lastSeen[userID] = time.Now()
	return !ok
}

// Unregister drops a connection. Returns the owning user id and true when
// that was the user's last connection, i.e. the user just went fully
// offline. Unknown connections are a no-op.
func (r *Registry) Unregister(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.connUsers[connID]
	if !ok {
		return "", false
	}
	delete(r.connUsers, connID)

	set := r.userConns[userID]
	delete(set, connID)
	if len(set) > 0 {
		return userID, false
	}
	delete(r.userConns, userID)
	delete(r.lastSeen, userID)
	return userID, true
}

// RemoveUser evicts every connection of a user at once and returns the
// removed connection ids. Used by the liveness sweeper so a multi-connection
// user produces a single offline transition.
func (r *Registry) RemoveUser(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.userConns[userID]
	if !ok {
		return nil
	}
	conns := make([]string, 0, len(set))
	for connID := range set {
		conns = append(conns, connID)
		delete(r.connUsers, connID)
	}
	delete(r.userConns, userID)
	delete(r.lastSeen, userID)
	return conns
}

// Touch refreshes the user's last-seen timestamp. Returns false when the
// user is not registered, which signals the caller that a sweeper eviction
// raced a live client.
func (r *Registry) Touch(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.userConns[userID]; !ok {
		return false
	}
	r.lastSeen[userID] = time.Now()
	return true
}

// IsOnline reports whether the user holds at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userConns[userID]) > 0
}

// LastSeen returns the user's last liveness signal.
func (r *Registry) LastSeen(userID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.lastSeen[userID]
	return t, ok
}

// SetLastSeen overrides the liveness timestamp of an already-registered
// user. Unknown users are a no-op; a later Touch wins.
func (r *Registry) SetLastSeen(userID string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lastSeen[userID]; ok {
		r.lastSeen[userID] = t
	}
}

// OnlineUsers returns a snapshot of all currently online user ids.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.userConns))
	for userID := range r.userConns {
		users = append(users, userID)
	}
	return users
}

// Connections returns a snapshot of the user's live connection ids.
func (r *Registry) Connections(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.userConns[userID]
	conns := make([]string, 0, len(set))
	for connID := range set {
		conns = append(conns, connID)
	}
	return conns
}

// StaleUsers returns users whose last-seen timestamp is older than cutoff.
func (r *Registry) StaleUsers(cutoff time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stale := make([]string, 0)
	for userID, seen := range r.lastSeen {
		if seen.Before(cutoff) {
			stale = append(stale, userID)
		}
	}
	return stale
}
