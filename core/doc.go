// Package core defines the shared domain model and service contracts for the
// clinical examination simulation: cases, sessions with ordered turn logs,
// feedback reports, the store interfaces backing them, and the sentinel error
// taxonomy used across packages.
//
// Everything in this package is either immutable (Case, FeedbackReport after
// creation) or guarded for concurrent access (Session). Higher layers depend
// on these types and interfaces only; concrete store implementations live in
// sibling packages (casebank, session, retrieval).
package core
