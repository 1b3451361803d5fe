package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Session links a browser session id to an authenticated user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore keeps sessions in memory and mirrors them to a JSON file so
// sign-ins survive a server restart. The file is best-effort; a write failure
// never blocks login.
type SessionStore struct {
	mu       sync.RWMutex
	path     string
	sessions map[string]Session
	// OAuth state mapping for CSRF protection during login
	sessionByState map[string]string
}

func NewSessionStore(path string) *SessionStore {
	s := &SessionStore{
		path:           path,
		sessions:       make(map[string]Session),
		sessionByState: make(map[string]string),
	}
	s.load()
	return s
}

func (s *SessionStore) load() {
	if s.path == "" {
		return
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var sessions map[string]Session
	if err := json.Unmarshal(b, &sessions); err != nil {
		return
	}
	s.sessions = sessions
}

// flushLocked writes the session map to disk; callers hold the lock.
func (s *SessionStore) flushLocked() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Create registers a session for the user and persists it.
func (s *SessionStore) Create(sessionID, userID, email string) (Session, error) {
	if sessionID == "" || userID == "" {
		return Session{}, fmt.Errorf("session id and user id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := Session{ID: sessionID, UserID: userID, Email: email, CreatedAt: time.Now().UTC()}
	s.sessions[sessionID] = sess
	_ = s.flushLocked()
	return sess, nil
}

// Get resolves a session id to its session, if any.
func (s *SessionStore) Get(sessionID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

// Delete removes a session (signout).
func (s *SessionStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return s.flushLocked()
}

// SetOAuthState records the CSRF state issued when a login starts.
func (s *SessionStore) SetOAuthState(sessionID, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionByState[state] = sessionID
}

// TakeOAuthState resolves and consumes a state value on callback.
func (s *SessionStore) TakeOAuthState(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid, ok := s.sessionByState[state]
	if ok {
		delete(s.sessionByState, state)
	}
	return sid, ok
}
