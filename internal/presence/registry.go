// Package presence owns the mapping between users and their live
// connections. The registry is the single source of truth for who is online;
// nothing else in the process keeps its own copy.
package presence

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks user ↔ connection bindings with forward and reverse
// indexes. At most one connection per user: a second identify from a new
// connection supersedes the old binding (last-identify-wins).
//
// The registry is deliberately side-effect-free. Mutations raise a coalesced
// signal on Notify; the connection lifecycle layer consumes it and performs
// the online-set broadcast.
type Registry struct {
	mu    sync.RWMutex
	users map[uuid.UUID]string // forward: user → conn id
	conns map[string]uuid.UUID // reverse: conn id → user

	notify chan struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[uuid.UUID]string),
		conns:  make(map[string]uuid.UUID),
		notify: make(chan struct{}, 1),
	}
}

// Bind records or overwrites the binding for userID. It never fails. If the
// user was bound to another connection, that binding is dropped; if connID
// was bound to another user, that binding is dropped too.
func (r *Registry) Bind(userID uuid.UUID, connID string) {
	r.mu.Lock()
	if old, ok := r.users[userID]; ok {
		delete(r.conns, old)
	}
	if old, ok := r.conns[connID]; ok {
		delete(r.users, old)
	}
	r.users[userID] = connID
	r.conns[connID] = userID
	r.mu.Unlock()

	r.signal()
}

// Unbind removes the binding held by connID and returns the user it
// represented. A connection that is no longer the current binding for its
// user (a stale disconnect) is a no-op: the newer binding stays intact.
func (r *Registry) Unbind(connID string) (uuid.UUID, bool) {
	r.mu.Lock()
	userID, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
		delete(r.users, userID)
	}
	r.mu.Unlock()

	if ok {
		r.signal()
	}
	return userID, ok
}

// Lookup returns the connection currently bound to userID.
func (r *Registry) Lookup(userID uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.users[userID]
	return connID, ok
}

// UserOf returns the user bound to connID.
func (r *Registry) UserOf(connID string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.conns[connID]
	return userID, ok
}

// Snapshot returns the set of online user ids. Order is unspecified.
func (r *Registry) Snapshot() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	online := make([]uuid.UUID, 0, len(r.users))
	for userID := range r.users {
		online = append(online, userID)
	}
	return online
}

// Online returns the number of bound users.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Notify returns a channel that receives a coalesced signal after every
// effective mutation. Consumers re-read Snapshot; intermediate states may be
// skipped but the final state is always observed.
func (r *Registry) Notify() <-chan struct{} {
	return r.notify
}

func (r *Registry) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}
