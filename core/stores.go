package core

import "context"

// CaseStore is the read-only case repository contract. Implementations live
// in the casebank package.
type CaseStore interface {
	// GetCase returns the case for id or ErrCaseNotFound.
	GetCase(id string) (*Case, error)
}

// SessionStore persists sessions, their turn logs and feedback reports. All
// methods must be atomic with respect to the orchestrator's per-session
// serialization; methods on unknown session ids return ErrSessionNotFound.
type SessionStore interface {
	Create(caseID, user string) (*Session, error)
	Get(id string) (*Session, error)
	// AppendTurn appends an utterance and returns the stored turn with its
	// assigned sequence number.
	AppendTurn(sessionID string, speaker Speaker, text string) (Turn, error)
	SetMode(sessionID string, m Mode) error
	// Terminate moves the session to its final state; at most once per session.
	Terminate(sessionID string) error
	// SaveFeedback stores the report for a terminated session. Saving against
	// an active session fails with ErrInvalidSessionState.
	SaveFeedback(sessionID string, report *FeedbackReport) error
	GetFeedback(sessionID string) (*FeedbackReport, error)
}

// Retriever is the vector similarity search contract over an already-built
// reference index. Queries are expected to block on network latency and must
// honor ctx cancellation; failures surface as ErrRetrievalUnavailable.
type Retriever interface {
	// Query returns up to k passages most similar to vector, ordered by
	// descending score. A non-empty filter restricts results to passages
	// whose metadata contains every given key/value pair.
	Query(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Passage, error)
}
