// Package intent decides, for each candidate utterance, which persona should
// answer: the patient or the examiner, and for examiner requests which
// findings category is being asked for.
//
// The Classifier interface isolates the matching strategy from the session
// state machine so a lexical matcher can later be swapped for an
// embedding-based one without touching the orchestrator. The shipped
// LexicalClassifier is a best-effort keyword heuristic, not a parser; its
// misclassifications are an accepted limitation of the routing policy, and in
// exchange its decisions are fully deterministic.
package intent
