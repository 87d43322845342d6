// Package session holds the per-connection state a client builds up:
// a display nickname and a working-directory cursor inside the root.
//
// The Registry is owned by the multiplexer loop.  Handlers never touch
// it directly; they receive a Session value and return the changes
// they want applied.
package session

import (
	"sort"

	ncerr "telfs/internal/errors"
	"telfs/internal/sandbox"
)

// ID identifies a connection for its whole lifetime.  It is the
// remote transport address in string form.
type ID string

// Session is a snapshot of one connection's state.
type Session struct {
	ID       ID
	Nickname string // empty until the client sets one
	Cwd      string // virtual path, always within the root
}

// Name is what the prompt shows: the nickname, or the address when no
// nickname has been set.
func (s Session) Name() string {
	if s.Nickname != "" {
		return s.Nickname
	}
	return string(s.ID)
}

// Registry maps connection identity to session state.  It is not safe
// for concurrent use.
type Registry struct {
	sessions map[ID]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[ID]*Session)}
}

// Open creates a fresh session for id at the root, replacing anything
// a previous connection with the same identity left behind.
func (r *Registry) Open(id ID) Session {
	s := &Session{ID: id, Cwd: sandbox.Top}
	r.sessions[id] = s
	return *s
}

// Get returns the session for id.  An unknown id yields the default
// session: no nickname, cursor at the root.
func (r *Registry) Get(id ID) Session {
	if s, ok := r.sessions[id]; ok {
		return *s
	}
	return Session{ID: id, Cwd: sandbox.Top}
}

func (r *Registry) entry(id ID) *Session {
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{ID: id, Cwd: sandbox.Top}
		r.sessions[id] = s
	}
	return s
}

// SetNickname records a display name for id.
func (r *Registry) SetNickname(id ID, nickname string) {
	r.entry(id).Nickname = nickname
}

// SetCurrentDirectory moves the cursor of id.  A path outside the root
// is refused and the cursor stays where it was.
func (r *Registry) SetCurrentDirectory(id ID, p string) error {
	if !sandbox.Within(p) {
		return ncerr.ErrOutsideRoot
	}
	r.entry(id).Cwd = p
	return nil
}

// Remove forgets id.  Removing an unknown id is a no-op.
func (r *Registry) Remove(id ID) {
	delete(r.sessions, id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int { return len(r.sessions) }

// IDs returns every live session id in sorted order.
func (r *Registry) IDs() []ID {
	out := make([]ID, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clear removes every session.  Used at server shutdown.
func (r *Registry) Clear() {
	clear(r.sessions)
}
