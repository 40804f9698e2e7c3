package services

import "sync"

// Client is a live, addressable connection for one authenticated user.
// Implemented by the socket package; tests use in-memory fakes.
type Client interface {
	UserID() string
	Username() string
	Send(event string, payload interface{}) error
}

// Registry maps user identity to its live connection and, separately, to a
// pending-match membership flag. The flag is what excludes a user from new
// pairing passes while a proposal is outstanding; MarkPendingPair makes the
// claim atomic for both users of a candidate pair so two concurrent passes
// cannot double-book anyone.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	pending map[string]string // user id -> pending match id
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
		pending: make(map[string]string),
	}
}

// Register records the connection for a user. An existing entry is kept, so
// a duplicate connection for the same identity does not displace the first.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c.UserID()]; !ok {
		r.clients[c.UserID()] = c
	}
}

// Unregister drops the connection entry and pending flag, but only when c
// is the registered connection for its user id. A duplicate connection
// closing must not tear down the live one. Reports whether the entry was
// removed.
func (r *Registry) Unregister(c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID := c.UserID()
	if current, ok := r.clients[userID]; !ok || current != c {
		return false
	}
	delete(r.clients, userID)
	delete(r.pending, userID)
	return true
}

// Get returns the user's live connection, if any.
func (r *Registry) Get(userID string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	return c, ok
}

// All returns the currently registered connections.
func (r *Registry) All() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// IsPending reports whether the user is part of an outstanding pending
// match.
func (r *Registry) IsPending(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pending[userID]
	return ok
}

// MarkPendingPair flags both users as pending members of matchID. It claims
// both or neither: if either user is already flagged, nothing changes and
// false is returned.
func (r *Registry) MarkPendingPair(matchID, userA, userB string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[userA]; ok {
		return false
	}
	if _, ok := r.pending[userB]; ok {
		return false
	}
	r.pending[userA] = matchID
	r.pending[userB] = matchID
	return true
}

// ClearPending removes the pending flag for the given users.
func (r *Registry) ClearPending(userIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range userIDs {
		delete(r.pending, id)
	}
}
