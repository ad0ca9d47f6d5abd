// Package oscesim provides a high-level façade over the session orchestrator
// and its service abstractions (cases, sessions, retrieval & logging) for
// running simulated clinical examination stations. Most applications interact
// with this package by:
//  1. Creating a Simulator via New() with a model gateway (optionally
//     overriding default in-memory services)
//  2. Loading exam cases and reference passages
//  3. Driving sessions: StartSession, Submit, EndSession
//
// The façade delegates orchestration to engine.Engine while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply durable store
// implementations, a pgvector-backed retriever and a structured logger.
package oscesim

import (
	"context"
	"fmt"
	"time"

	"github.com/oscesim/oscesim/casebank"
	"github.com/oscesim/oscesim/core"
	"github.com/oscesim/oscesim/engine"
	"github.com/oscesim/oscesim/intent"
	"github.com/oscesim/oscesim/logging"
	"github.com/oscesim/oscesim/model"
	"github.com/oscesim/oscesim/retrieval"
	"github.com/oscesim/oscesim/session"
)

// Options configures the Simulator instance.
type Options struct {
	// Stores (default to in-memory implementations if not provided)
	CaseStore    core.CaseStore
	SessionStore core.SessionStore
	Retriever    core.Retriever

	// Classifier routes utterances between personas (defaults to the lexical
	// classifier).
	Classifier intent.Classifier

	// CallTimeout bounds each model and retrieval call.
	CallTimeout time.Duration

	// Hooks observe session lifecycle events.
	Hooks []engine.Hook

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Simulator is the high-level façade aggregating the underlying engine and
// services.
type Simulator struct {
	opts      Options
	gateway   model.Gateway
	cases     core.CaseStore
	retriever core.Retriever
	engine    *engine.Engine
}

// New creates a Simulator with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(gateway model.Gateway, optFns ...func(o *Options)) *Simulator {
	opts := Options{
		CaseStore:    casebank.NewInMemoryStore(),
		SessionStore: session.NewInMemoryStore(),
		Retriever:    retrieval.NewInMemoryIndex(),
		Classifier:   intent.NewLexicalClassifier(),
		CallTimeout:  engine.DefaultCallTimeout,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(opts.CaseStore, gateway, opts.Retriever, func(o *engine.Options) {
		o.SessionStore = opts.SessionStore
		o.Classifier = opts.Classifier
		o.CallTimeout = opts.CallTimeout
		o.Hooks = opts.Hooks
		o.Logger = opts.Logger
	})

	return &Simulator{
		opts:      opts,
		gateway:   gateway,
		cases:     opts.CaseStore,
		retriever: opts.Retriever,
		engine:    e,
	}
}

// AddCase loads a case into the case store. It fails when the configured
// store is read-only (e.g. a database-backed bank maintained externally).
func (s *Simulator) AddCase(c *core.Case) error {
	type adder interface{ Add(c *core.Case) }
	a, ok := s.cases.(adder)
	if !ok {
		return fmt.Errorf("case store %T is read-only", s.cases)
	}
	a.Add(c)
	return nil
}

// IndexPassage embeds a reference passage through the gateway and adds it to
// the retriever. It fails when the configured retriever does not accept
// documents (e.g. a search-only index maintained externally).
func (s *Simulator) IndexPassage(ctx context.Context, id, content string, metadata map[string]string) error {
	type adder interface{ Add(doc retrieval.Document) error }
	a, ok := s.retriever.(adder)
	if !ok {
		return fmt.Errorf("retriever %T does not accept documents", s.retriever)
	}
	vec, err := s.gateway.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed passage %s: %w", id, err)
	}
	return a.Add(retrieval.Document{ID: id, Content: content, Vector: vec, Metadata: metadata})
}

// StartSession begins an exam session for a case in patient mode.
func (s *Simulator) StartSession(ctx context.Context, caseID, user string) (*core.Session, error) {
	return s.engine.StartSession(ctx, caseID, user)
}

// Submit routes one candidate utterance and returns the persona's reply.
func (s *Simulator) Submit(ctx context.Context, sessionID, text string) (*engine.Reply, error) {
	return s.engine.SubmitUtterance(ctx, sessionID, text)
}

// ResumePatient returns the floor to the patient persona.
func (s *Simulator) ResumePatient(sessionID string) error {
	return s.engine.ResumePatient(sessionID)
}

// EndSession terminates a session and returns its feedback report.
func (s *Simulator) EndSession(ctx context.Context, sessionID string) (*core.FeedbackReport, error) {
	return s.engine.EndSession(ctx, sessionID)
}

// SessionState returns a snapshot of a session's lifecycle state.
func (s *Simulator) SessionState(sessionID string) (*engine.SessionState, error) {
	return s.engine.SessionState(sessionID)
}

// Transcript returns a session's full turn log.
func (s *Simulator) Transcript(sessionID string) ([]core.Turn, error) {
	return s.engine.Transcript(sessionID)
}

// Feedback returns the stored report of a terminated session.
func (s *Simulator) Feedback(sessionID string) (*core.FeedbackReport, error) {
	return s.engine.Feedback(sessionID)
}
