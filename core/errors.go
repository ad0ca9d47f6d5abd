package core

import "errors"

var (
	// ErrInvalidSessionState is returned when an illegal state machine
	// transition is attempted, e.g. submitting an utterance to a terminated
	// session or terminating a session twice.
	ErrInvalidSessionState = errors.New("invalid session state")

	// ErrCaseNotFound is returned by a CaseStore when no case exists for the
	// requested id.
	ErrCaseNotFound = errors.New("case not found")

	// ErrSessionNotFound is returned by a SessionStore when no session exists
	// for the requested id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrGenerationUnavailable indicates a language model call failed or
	// timed out. Persona replies are never fabricated in its place; callers
	// may resubmit the same utterance.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrRetrievalUnavailable indicates a vector similarity query failed or
	// timed out.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrFeedbackGeneration indicates the feedback pipeline could not produce
	// a trustworthy report. It is distinct from reply failures: it occurs at
	// session end, the session stays active, and the recovery path is
	// retrying EndSession rather than resubmitting an utterance.
	ErrFeedbackGeneration = errors.New("feedback generation failed")
)
