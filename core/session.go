package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mode is the session's currently active persona, the single state of the
// session state machine.
type Mode string

const (
	// ModeActivePatient routes unmarked utterances to the patient persona.
	ModeActivePatient Mode = "ACTIVE_PATIENT"
	// ModeActiveExaminer routes utterances to the examiner workflow until an
	// explicit resume signal.
	ModeActiveExaminer Mode = "ACTIVE_EXAMINER"
	// ModeTerminated is final; no further utterances are accepted.
	ModeTerminated Mode = "TERMINATED"
)

// Speaker identifies who authored a turn.
type Speaker string

const (
	// SpeakerCandidate is the examinee driving the session.
	SpeakerCandidate Speaker = "candidate"
	// SpeakerPatient is the simulated patient persona.
	SpeakerPatient Speaker = "patient"
	// SpeakerExaminer is the simulated examiner persona.
	SpeakerExaminer Speaker = "examiner"
)

// Turn is one utterance in a session's conversation log. Turns are append
// only and never mutated after creation. Seq, not Timestamp, defines the
// total order so replay stays deterministic under identical timestamps.
type Turn struct {
	Seq       int       `json:"seq"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session tracks one candidate's encounter with one case: the ordered turn
// log and the current mode. It is safe for concurrent access, though the
// orchestrator additionally serializes all calls per session.
//
// Contract:
//   - Turn sequence numbers are strictly increasing and gapless from 1
//   - Mode is always exactly one of the three defined states
//   - Terminate succeeds at most once; Ended is nil while active
//   - Turns returns a defensive copy
type Session struct {
	ID      string     `json:"id"`
	CaseID  string     `json:"case_id"`
	User    string     `json:"user"`
	Mode    Mode       `json:"mode"`
	Turns   []Turn     `json:"turns"`
	Created time.Time  `json:"created"`
	Ended   *time.Time `json:"ended,omitempty"`
	mu      sync.RWMutex
}

// NewSession creates an active session in ModeActivePatient.
func NewSession(caseID, user string) *Session {
	return &Session{
		ID:      NewID(),
		CaseID:  caseID,
		User:    user,
		Mode:    ModeActivePatient,
		Created: time.Now().UTC(),
	}
}

// NewID generates a unique identifier for sessions, turns and reports.
func NewID() string { return uuid.NewString() }

// AppendTurn appends an utterance to the log, assigning the next sequence
// number. It fails with ErrInvalidSessionState once the session has been
// terminated.
func (s *Session) AppendTurn(speaker Speaker, text string) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Mode == ModeTerminated {
		return Turn{}, ErrInvalidSessionState
	}
	t := Turn{
		Seq:       len(s.Turns) + 1,
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	s.Turns = append(s.Turns, t)
	return t, nil
}

// SetMode switches between the two active modes. Termination goes through
// Terminate; any attempt to set a mode on a terminated session, or to set
// ModeTerminated directly, fails with ErrInvalidSessionState.
func (s *Session) SetMode(m Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Mode == ModeTerminated || (m != ModeActivePatient && m != ModeActiveExaminer) {
		return ErrInvalidSessionState
	}
	s.Mode = m
	return nil
}

// Terminate moves the session to its final state. It succeeds exactly once;
// every later call fails with ErrInvalidSessionState.
func (s *Session) Terminate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Mode == ModeTerminated {
		return ErrInvalidSessionState
	}
	s.Mode = ModeTerminated
	now := time.Now().UTC()
	s.Ended = &now
	return nil
}

// CurrentMode returns the session's mode.
func (s *Session) CurrentMode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Mode
}

// IsActive reports whether the session still accepts utterances.
func (s *Session) IsActive() bool { return s.CurrentMode() != ModeTerminated }

// GetTurns returns a copy of the full turn log in sequence order.
func (s *Session) GetTurns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]Turn, len(s.Turns))
	copy(turns, s.Turns)
	return turns
}

// TurnCount returns the number of turns recorded so far.
func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Turns)
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:      s.ID,
		CaseID:  s.CaseID,
		User:    s.User,
		Mode:    s.Mode,
		Turns:   make([]Turn, len(s.Turns)),
		Created: s.Created,
	}
	copy(clone.Turns, s.Turns)
	if s.Ended != nil {
		ended := *s.Ended
		clone.Ended = &ended
	}
	return clone
}
