package registry

import (
	"context"
	"errors"
	"sync"

	"chat-backend/internal/models"
)

// ErrTokenRequired is returned for authenticate attempts with an empty token.
var ErrTokenRequired = errors.New("token required")

// Authenticator resolves a bearer token to an active account.
type Authenticator interface {
	GetUserFromToken(ctx context.Context, token string) (models.User, error)
}

// Registry is the source of presence truth: a bidirectional index between
// live session ids and user ids. One user may hold many sessions; lookups
// are O(1) in both directions.
type Registry struct {
	mu       sync.RWMutex
	auth     Authenticator
	sessions map[string]int
	users    map[int]map[string]struct{}
}

// New constructs an empty Registry.
func New(auth Authenticator) *Registry {
	return &Registry{
		auth:     auth,
		sessions: make(map[string]int),
		users:    make(map[int]map[string]struct{}),
	}
}

// Authenticate verifies the token and binds the session to the resolved
// user. The bool reports whether this was the user's first live session.
// On any failure nothing is mutated. Re-authenticating an already-bound
// session rebinds it.
func (r *Registry) Authenticate(ctx context.Context, sessionID string, token string) (models.User, bool, error) {
	if token == "" {
		return models.User{}, false, ErrTokenRequired
	}

	user, err := r.auth.GetUserFromToken(ctx, token)
	if err != nil {
		return models.User{}, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prevUserID, bound := r.sessions[sessionID]; bound {
		r.unbindLocked(sessionID, prevUserID)
	}

	set, ok := r.users[user.ID]
	if !ok {
		set = make(map[string]struct{})
		r.users[user.ID] = set
	}
	first := len(set) == 0
	set[sessionID] = struct{}{}
	r.sessions[sessionID] = user.ID
	return user, first, nil
}

// UserID resolves a session to its authenticated user.
func (r *Registry) UserID(sessionID string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.sessions[sessionID]
	return userID, ok
}

// Sessions returns a snapshot of the user's live session ids.
func (r *Registry) Sessions(userID int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.users[userID]
	out := make([]string, 0, len(set))
	for sessionID := range set {
		out = append(out, sessionID)
	}
	return out
}

// Online reports whether the user has at least one live session.
func (r *Registry) Online(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Disconnect removes the session's binding. last reports whether this was
// the user's final session; ok is false for sessions that never
// authenticated, in which case nothing is mutated.
func (r *Registry) Disconnect(sessionID string) (userID int, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.sessions[sessionID]
	if !ok {
		return 0, false, false
	}
	r.unbindLocked(sessionID, userID)
	_, stillOnline := r.users[userID]
	return userID, !stillOnline, true
}

func (r *Registry) unbindLocked(sessionID string, userID int) {
	delete(r.sessions, sessionID)
	if set, ok := r.users[userID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.users, userID)
		}
	}
}
