package session

import (
	"fmt"
	"sync"

	"github.com/oscesim/oscesim/core"
)

// InMemoryStore is a volatile core.SessionStore keeping sessions and their
// feedback reports in process-local maps. It is safe for concurrent access
// and best suited for tests and single-node deployments. Get returns a clone
// to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	feedback map[string]*core.FeedbackReport
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*core.Session),
		feedback: make(map[string]*core.FeedbackReport),
	}
}

// Create allocates and stores a new active session for the case/user pair.
func (s *InMemoryStore) Create(caseID, user string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := core.NewSession(caseID, user)
	s.sessions[sess.ID] = sess
	return sess.Clone(), nil
}

// Get returns a clone of an existing session or core.ErrSessionNotFound.
func (s *InMemoryStore) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return sess.Clone(), nil
}

// AppendTurn appends an utterance to the session's log and returns the stored
// turn with its assigned sequence number.
func (s *InMemoryStore) AppendTurn(sessionID string, speaker core.Speaker, text string) (core.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return core.Turn{}, fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	return sess.AppendTurn(speaker, text)
}

// SetMode switches the session between the two active modes.
func (s *InMemoryStore) SetMode(sessionID string, m core.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	return sess.SetMode(m)
}

// Terminate moves the session to its final state; at most once per session.
func (s *InMemoryStore) Terminate(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	return sess.Terminate()
}

// SaveFeedback stores the report for a terminated session. Saving against an
// active session violates the "report exists iff terminated" invariant and
// fails with core.ErrInvalidSessionState.
func (s *InMemoryStore) SaveFeedback(sessionID string, report *core.FeedbackReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	if sess.IsActive() {
		return fmt.Errorf("%w: feedback for active session %s", core.ErrInvalidSessionState, sessionID)
	}
	s.feedback[sessionID] = report
	return nil
}

// GetFeedback returns the stored report or core.ErrSessionNotFound when none
// exists for the id.
func (s *InMemoryStore) GetFeedback(sessionID string) (*core.FeedbackReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.feedback[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: no feedback for %s", core.ErrSessionNotFound, sessionID)
	}
	return report, nil
}
