package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oscesim/oscesim/agent"
	"github.com/oscesim/oscesim/core"
	"github.com/oscesim/oscesim/intent"
	"github.com/oscesim/oscesim/logging"
	"github.com/oscesim/oscesim/model"
	"github.com/oscesim/oscesim/session"
)

// DefaultCallTimeout bounds a single model or retrieval call.
const DefaultCallTimeout = 60 * time.Second

// PatientResponder produces in-character patient replies.
type PatientResponder interface {
	Reply(ctx context.Context, c *core.Case, history []core.Turn, utterance string) (string, error)
}

// ExaminerResponder answers examiner-directed findings requests.
type ExaminerResponder interface {
	Respond(ctx context.Context, c *core.Case, state *core.AgentState, category core.FindingCategory, utterance string) (core.Finding, error)
}

// FeedbackGenerator scores a finished transcript into a feedback report.
type FeedbackGenerator interface {
	Generate(ctx context.Context, c *core.Case, sessionID string, turns []core.Turn) (*core.FeedbackReport, error)
}

// Options configures an Engine. All service dependencies default to the
// in-process implementations, so New(caseStore, gateway, retriever) is a
// complete setup for development and tests.
type Options struct {
	// SessionStore persists sessions, turn logs and feedback reports.
	// Defaults to the in-memory store.
	SessionStore core.SessionStore

	// Classifier routes utterances between the personas. Defaults to the
	// lexical classifier.
	Classifier intent.Classifier

	// Patient, Examiner and Feedback override the default persona agents
	// built from the gateway and retriever.
	Patient  PatientResponder
	Examiner ExaminerResponder
	Feedback FeedbackGenerator

	// CallTimeout bounds each model and retrieval call, layered on top of
	// the caller's context. Zero disables the per-call timeout.
	CallTimeout time.Duration

	// Hooks observe lifecycle events in registration order.
	Hooks []Hook

	Logger logging.Logger
}

// WithHook appends a lifecycle hook.
func WithHook(h Hook) func(o *Options) {
	return func(o *Options) { o.Hooks = append(o.Hooks, h) }
}

// Engine orchestrates exam sessions end to end: it creates sessions against
// the case repository, routes each candidate utterance to the right persona,
// enforces the session state machine and produces the terminal feedback
// report.
//
// Calls on the same session are serialized through a per-session handle;
// calls on different sessions proceed concurrently. The handle also carries
// the session's loaded case and the examiner's disclosure memo, so repeated
// findings requests stay consistent for the session's lifetime.
type Engine struct {
	cases      core.CaseStore
	sessions   core.SessionStore
	classifier intent.Classifier
	patient    PatientResponder
	examiner   ExaminerResponder
	feedback   FeedbackGenerator

	callTimeout time.Duration
	hooks       []Hook
	logger      logging.Logger

	mu      sync.Mutex
	handles map[string]*sessionHandle
}

// sessionHandle serializes all calls touching one session and carries its
// in-flight working state.
type sessionHandle struct {
	mu    sync.Mutex
	c     *core.Case
	state *core.AgentState
}

// New creates an Engine over a case repository, a model gateway and a
// reference retriever. The gateway drives the patient and examiner personas
// and the feedback embedding; the retriever supplies reference passages for
// feedback reports.
func New(cases core.CaseStore, gateway model.Gateway, retriever core.Retriever, optFns ...func(o *Options)) *Engine {
	opts := Options{
		SessionStore: session.NewInMemoryStore(),
		Classifier:   intent.NewLexicalClassifier(),
		CallTimeout:  DefaultCallTimeout,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Patient == nil {
		opts.Patient = agent.NewPatientAgent(gateway, func(o *agent.PatientAgentOptions) { o.Logger = opts.Logger })
	}
	if opts.Examiner == nil {
		opts.Examiner = agent.NewExaminerAgent(gateway, func(o *agent.ExaminerAgentOptions) { o.Logger = opts.Logger })
	}
	if opts.Feedback == nil {
		opts.Feedback = agent.NewFeedbackAgent(gateway, retriever, func(o *agent.FeedbackAgentOptions) {
			// The gateway also polishes the report narrative; scoring stays
			// deterministic and polish failures fall back to the draft.
			o.Generator = gateway
			o.Logger = opts.Logger
		})
	}

	return &Engine{
		cases:       cases,
		sessions:    opts.SessionStore,
		classifier:  opts.Classifier,
		patient:     opts.Patient,
		examiner:    opts.Examiner,
		feedback:    opts.Feedback,
		callTimeout: opts.CallTimeout,
		hooks:       opts.Hooks,
		logger:      opts.Logger,
		handles:     make(map[string]*sessionHandle),
	}
}

// Reply is the orchestrator's answer to one submitted utterance.
type Reply struct {
	SessionID string       `json:"session_id"`
	Seq       int          `json:"seq"`
	Speaker   core.Speaker `json:"speaker"`
	Text      string       `json:"text"`
	// Mode is the session mode after the utterance was processed.
	Mode core.Mode `json:"mode"`
	// Authoritative is meaningful for examiner replies only: true when the
	// finding was quoted from the case material.
	Authoritative bool `json:"authoritative,omitempty"`
}

// SessionState is a point-in-time snapshot of one session.
type SessionState struct {
	SessionID string     `json:"session_id"`
	CaseID    string     `json:"case_id"`
	User      string     `json:"user"`
	Mode      core.Mode  `json:"mode"`
	TurnCount int        `json:"turn_count"`
	Active    bool       `json:"active"`
	Created   time.Time  `json:"created"`
	Ended     *time.Time `json:"ended,omitempty"`
}

// StartSession creates a session for a case in ModeActivePatient. Unknown
// case ids fail with core.ErrCaseNotFound.
func (e *Engine) StartSession(ctx context.Context, caseID, user string) (*core.Session, error) {
	c, err := e.cases.GetCase(caseID)
	if err != nil {
		return nil, err
	}
	sess, err := e.sessions.Create(caseID, user)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.handles[sess.ID] = &sessionHandle{c: c, state: core.NewAgentState()}
	e.mu.Unlock()

	logging.WithSession(e.logger, sess.ID).Info("session started", "case_id", caseID, "user", user)
	e.fire(HookEvent{Type: HookSessionStarted, SessionID: sess.ID, Mode: string(sess.Mode)})
	return sess, nil
}

// SubmitUtterance records the candidate's utterance, routes it to the active
// persona and records the reply.
//
// The candidate's turn is appended before the persona runs, so a failed
// generation still leaves the question in the transcript; only the reply is
// withheld. Utterances against a terminated session fail with
// core.ErrInvalidSessionState and record nothing.
func (e *Engine) SubmitUtterance(ctx context.Context, sessionID, text string) (*Reply, error) {
	h, err := e.handle(sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Mode == core.ModeTerminated {
		return nil, fmt.Errorf("%w: session %s is terminated", core.ErrInvalidSessionState, sessionID)
	}

	// History snapshot excludes the utterance being submitted.
	history := sess.GetTurns()

	turn, err := e.sessions.AppendTurn(sessionID, core.SpeakerCandidate, text)
	if err != nil {
		return nil, err
	}
	e.fireTurn(sessionID, turn)

	mode, decision, err := e.transition(sessionID, sess.Mode, text)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	lg := logging.WithSession(e.logger, sessionID)
	var (
		speaker       core.Speaker
		replyText     string
		authoritative bool
	)
	if mode == core.ModeActiveExaminer {
		finding, err := e.examiner.Respond(callCtx, h.c, h.state, decision.Category, text)
		if err != nil {
			lg.Error("examiner response failed", "category", decision.Category, "error", err.Error())
			return nil, err
		}
		speaker, replyText, authoritative = core.SpeakerExaminer, finding.Text, finding.Authoritative
	} else {
		out, err := e.patient.Reply(callCtx, h.c, history, text)
		if err != nil {
			lg.Error("patient reply failed", "error", err.Error())
			return nil, err
		}
		speaker, replyText = core.SpeakerPatient, out
	}

	replyTurn, err := e.sessions.AppendTurn(sessionID, speaker, replyText)
	if err != nil {
		return nil, err
	}
	e.fireTurn(sessionID, replyTurn)

	return &Reply{
		SessionID:     sessionID,
		Seq:           replyTurn.Seq,
		Speaker:       speaker,
		Text:          replyText,
		Mode:          mode,
		Authoritative: authoritative,
	}, nil
}

// transition applies the classifier's routing decision to the session mode
// and returns the mode the utterance is dispatched under.
func (e *Engine) transition(sessionID string, mode core.Mode, text string) (core.Mode, intent.Decision, error) {
	decision := e.classifier.Classify(text, mode)

	next := mode
	switch {
	case decision.Resume && mode == core.ModeActiveExaminer:
		next = core.ModeActivePatient
	case decision.Target == intent.TargetExaminer && mode == core.ModeActivePatient:
		next = core.ModeActiveExaminer
	}
	if next != mode {
		if err := e.sessions.SetMode(sessionID, next); err != nil {
			return mode, decision, err
		}
		logging.WithSession(e.logger, sessionID).Info("mode changed", "from", mode, "to", next)
		e.fire(HookEvent{Type: HookModeChanged, SessionID: sessionID, Mode: string(next)})
	}
	return next, decision, nil
}

// ResumePatient explicitly returns the floor to the patient persona without
// consuming a turn. Resuming a terminated session fails with
// core.ErrInvalidSessionState; resuming while already in patient mode is a
// no-op.
func (e *Engine) ResumePatient(sessionID string) error {
	h, err := e.handle(sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if sess.Mode == core.ModeActivePatient {
		return nil
	}
	if err := e.sessions.SetMode(sessionID, core.ModeActivePatient); err != nil {
		return err
	}
	logging.WithSession(e.logger, sessionID).Info("mode changed", "from", sess.Mode, "to", core.ModeActivePatient)
	e.fire(HookEvent{Type: HookModeChanged, SessionID: sessionID, Mode: string(core.ModeActivePatient)})
	return nil
}

// EndSession closes a session: it generates the feedback report over the
// full transcript, terminates the session and persists the report, in that
// order. If feedback generation fails the session stays active and EndSession
// can be retried; once a session has terminated, further calls fail with
// core.ErrInvalidSessionState.
func (e *Engine) EndSession(ctx context.Context, sessionID string) (*core.FeedbackReport, error) {
	h, err := e.handle(sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Mode == core.ModeTerminated {
		return nil, fmt.Errorf("%w: session %s already ended", core.ErrInvalidSessionState, sessionID)
	}

	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	lg := logging.WithSession(e.logger, sessionID)
	report, err := e.feedback.Generate(callCtx, h.c, sessionID, sess.GetTurns())
	if err != nil {
		lg.Error("feedback generation failed, session stays active", "error", err.Error())
		return nil, err
	}

	if err := e.sessions.Terminate(sessionID); err != nil {
		return nil, err
	}
	if err := e.sessions.SaveFeedback(sessionID, report); err != nil {
		return nil, err
	}

	e.mu.Lock()
	delete(e.handles, sessionID)
	e.mu.Unlock()

	lg.Info("session ended", "score", report.Score, "passed", report.Passed)
	e.fire(HookEvent{Type: HookSessionEnded, SessionID: sessionID, Score: report.Score})
	return report, nil
}

// SessionState returns a snapshot of the session's lifecycle state.
func (e *Engine) SessionState(sessionID string) (*SessionState, error) {
	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionState{
		SessionID: sess.ID,
		CaseID:    sess.CaseID,
		User:      sess.User,
		Mode:      sess.Mode,
		TurnCount: sess.TurnCount(),
		Active:    sess.Mode != core.ModeTerminated,
		Created:   sess.Created,
		Ended:     sess.Ended,
	}, nil
}

// Transcript returns the session's full turn log in sequence order.
func (e *Engine) Transcript(sessionID string) ([]core.Turn, error) {
	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.GetTurns(), nil
}

// Feedback returns the stored report of a terminated session.
func (e *Engine) Feedback(sessionID string) (*core.FeedbackReport, error) {
	return e.sessions.GetFeedback(sessionID)
}

// handle returns the per-session handle, rebuilding it from the stores when
// the engine has no in-memory state for the session (e.g. after a restart
// against a persistent session store).
func (e *Engine) handle(sessionID string) (*sessionHandle, error) {
	e.mu.Lock()
	if h, ok := e.handles[sessionID]; ok {
		e.mu.Unlock()
		return h, nil
	}
	e.mu.Unlock()

	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	c, err := e.cases.GetCase(sess.CaseID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.handles[sessionID]; ok {
		return h, nil
	}
	h := &sessionHandle{c: c, state: core.NewAgentState()}
	e.handles[sessionID] = h
	return h, nil
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.callTimeout)
}

func (e *Engine) fireTurn(sessionID string, t core.Turn) {
	e.fire(HookEvent{
		Type:      HookTurnAppended,
		SessionID: sessionID,
		Turn:      &TurnInfo{Seq: t.Seq, Speaker: string(t.Speaker), Text: t.Text},
	})
}
