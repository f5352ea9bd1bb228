package roles

import (
	"errors"
	"sync"
	"time"
)

// SessionTTL is how long an abandoned setup session survives before the
// sweep drops it.
const SessionTTL = 10 * time.Minute

var (
	// ErrNoSession means no setup session exists for the guild and
	// operator; the wizard has to be restarted.
	ErrNoSession = errors.New("no active setup session")
	// ErrNoRolesSelected rejects committing a custom-mode session with
	// an empty selection.
	ErrNoRolesSelected = errors.New("no roles selected")
	// ErrModeNotSelected rejects committing a session before a mode
	// was chosen.
	ErrModeNotSelected = errors.New("no mode selected")
)

// Session is one operator's in-progress setup wizard for one guild.
type Session struct {
	GuildID    string
	OperatorID string
	CreatedAt  time.Time

	Mode         Mode
	ModeSelected bool
	CustomKeys   []Key
}

// Validate checks the session can be committed.
func (s *Session) Validate() error {
	if !s.ModeSelected {
		return ErrModeNotSelected
	}
	if s.Mode == ModeCustom && len(s.CustomKeys) == 0 {
		return ErrNoRolesSelected
	}
	return nil
}

// DesiredKeys returns the role keys the session's selections imply.
func (s *Session) DesiredKeys() []Key {
	switch s.Mode {
	case ModeLevels:
		return LevelKeys()
	case ModeClasses:
		return ClassKeys()
	case ModeCustom:
		return append([]Key(nil), s.CustomKeys...)
	default:
		return nil
	}
}

// SessionTable holds in-progress setup sessions keyed by guild and
// operator. Readers and writers share a read/write lock; no lock is
// held across platform calls.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	now func() time.Time
}

// NewSessionTable creates an empty table.
func NewSessionTable() *SessionTable {
	return &SessionTable{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func sessionKey(guildID, operatorID string) string {
	return guildID + "/" + operatorID
}

// Begin starts a fresh session for the operator, replacing any
// in-progress one.
func (t *SessionTable) Begin(guildID, operatorID string) *Session {
	session := &Session{
		GuildID:    guildID,
		OperatorID: operatorID,
		CreatedAt:  t.now(),
	}

	t.mu.Lock()
	t.sessions[sessionKey(guildID, operatorID)] = session
	t.mu.Unlock()
	return session
}

// SelectMode records the operator's mode choice.
func (t *SessionTable) SelectMode(guildID, operatorID string, mode Mode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[sessionKey(guildID, operatorID)]
	if !ok {
		return ErrNoSession
	}
	session.Mode = mode
	session.ModeSelected = true
	if mode != ModeCustom {
		session.CustomKeys = nil
	}
	return nil
}

// SetCustomKeys records the operator's custom role selection.
func (t *SessionTable) SetCustomKeys(guildID, operatorID string, keys []Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[sessionKey(guildID, operatorID)]
	if !ok {
		return ErrNoSession
	}
	session.CustomKeys = append([]Key(nil), keys...)
	return nil
}

// Get returns a copy-safe view of the operator's session.
func (t *SessionTable) Get(guildID, operatorID string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	session, ok := t.sessions[sessionKey(guildID, operatorID)]
	return session, ok
}

// Take removes and returns the session for commit. Ownership passes to
// the reconciler; the session is gone regardless of the commit's
// outcome, so a failed commit requires restarting the wizard. A session
// past SessionTTL is dropped and reported missing even if the sweep has
// not reached it yet.
func (t *SessionTable) Take(guildID, operatorID string) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := sessionKey(guildID, operatorID)
	session, ok := t.sessions[key]
	if !ok {
		return nil, ErrNoSession
	}
	delete(t.sessions, key)
	if t.now().Sub(session.CreatedAt) >= SessionTTL {
		return nil, ErrNoSession
	}
	return session, nil
}

// SweepExpired drops sessions older than SessionTTL and returns how
// many were removed. Wired to a periodic scheduler by the caller.
func (t *SessionTable) SweepExpired() int {
	cutoff := t.now().Add(-SessionTTL)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, session := range t.sessions {
		if session.CreatedAt.Before(cutoff) {
			delete(t.sessions, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of in-progress sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
