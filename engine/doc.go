// Package engine implements the session orchestrator, the coordination hub of
// the exam simulation.
//
// The Engine owns the full session lifecycle: it starts sessions against a
// case repository, routes every candidate utterance through the intent
// classifier to the patient or examiner persona, drives the session state
// machine (ACTIVE_PATIENT, ACTIVE_EXAMINER, TERMINATED), and closes sessions
// by generating the feedback report.
//
// # Concurrency Model
//
// Calls on different sessions run concurrently; calls on the same session are
// serialized through a per-session handle so the turn log stays gapless and
// the mode transitions stay atomic. Model and retrieval calls run under a
// configurable per-call timeout derived from the caller's context.
//
// # Error Handling
//
//   - Utterances against a terminated session fail with
//     core.ErrInvalidSessionState and record nothing.
//   - A failed persona generation keeps the candidate's turn in the log and
//     records no reply, so the transcript reflects what was asked.
//   - A failed feedback generation leaves the session active; ending the
//     session can be retried.
//
// Cross-cutting concerns hook in via lifecycle hooks (see Hook) rather than
// by modifying the orchestration flow.
package engine
