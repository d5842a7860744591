package webui

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/textscan/internal/workflow"
)

// CookieName carries the session id.
const CookieName = "textscan_session"

type session struct {
	wf       *workflow.Workflow
	lastSeen time.Time
}

// SessionStore owns one workflow per browser session.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	newFlow  func() *workflow.Workflow
	idleTTL  time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store that builds workflows with newFlow.
func NewSessionStore(newFlow func() *workflow.Workflow, idleTTL time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session),
		newFlow:  newFlow,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Workflow returns the caller's workflow, creating a session (and setting the
// cookie) when the request carries none or an unknown one.
func (s *SessionStore) Workflow(w http.ResponseWriter, r *http.Request) *workflow.Workflow {
	var id string
	if c, err := r.Cookie(CookieName); err == nil {
		id = c.Value
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.lastSeen = s.now()
		return sess.wf
	}

	id = uuid.NewString()
	sess := &session{wf: s.newFlow(), lastSeen: s.now()}
	s.sessions[id] = sess
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess.wf
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were closed.
func (s *SessionStore) Sweep() int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var stale []*session
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.wf.Close()
	}
	return len(stale)
}

// Run sweeps periodically until ctx ends, then closes every session.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.CloseAll()
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// CloseAll tears down every session.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range all {
		sess.wf.Close()
	}
}
