package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscesim/oscesim/casebank"
	"github.com/oscesim/oscesim/core"
	"github.com/oscesim/oscesim/model"
	"github.com/oscesim/oscesim/retrieval"
)

func fixtureCase() *core.Case {
	return &core.Case{
		ID:                  "cardio-01",
		Category:            "cardiology",
		PatientInstructions: "You are a 54-year-old man with central chest pain for two hours.",
		Findings: map[core.FindingCategory]string{
			core.CategoryPhysicalExam: "BP 150/90, HR 102 regular, afebrile, chest clear.",
		},
		Approach: core.ReferenceApproach{
			Items: []core.ReferenceItem{
				{ID: "i1", Text: "Ask about chest pain onset and character"},
				{ID: "i2", Text: "Measure blood pressure and heart rate"},
			},
			ManagementPlan: "Serial ECGs and troponins.",
		},
	}
}

func fixtureEngine(t *testing.T, optFns ...func(o *Options)) (*Engine, *model.MockGateway) {
	t.Helper()
	cases := casebank.NewInMemoryStore()
	cases.Add(fixtureCase())
	gw := model.NewMockGateway()
	return New(cases, gw, retrieval.NewInMemoryIndex(), optFns...), gw
}

func TestStartSessionUnknownCase(t *testing.T) {
	e, _ := fixtureEngine(t)
	_, err := e.StartSession(context.Background(), "no-such-case", "candidate-1")
	assert.ErrorIs(t, err, core.ErrCaseNotFound)
}

func TestPatientConversation(t *testing.T) {
	e, gw := fixtureEngine(t)
	gw.AddResponse("When did the pain start?", "About two hours ago, doctor.")

	sess, err := e.StartSession(context.Background(), "cardio-01", "candidate-1")
	require.NoError(t, err)
	assert.Equal(t, core.ModeActivePatient, sess.Mode)

	reply, err := e.SubmitUtterance(context.Background(), sess.ID, "When did the pain start?")
	require.NoError(t, err)
	assert.Equal(t, core.SpeakerPatient, reply.Speaker)
	assert.Equal(t, "About two hours ago, doctor.", reply.Text)
	assert.Equal(t, core.ModeActivePatient, reply.Mode)
	assert.Equal(t, 2, reply.Seq)
}

func TestExaminerMarkerSwitchesMode(t *testing.T) {
	e, _ := fixtureEngine(t)
	sess, err := e.StartSession(context.Background(), "cardio-01", "candidate-1")
	require.NoError(t, err)

	reply, err := e.SubmitUtterance(context.Background(), sess.ID, "Examiner, I would like to check the vitals")
	require.NoError(t, err)
	assert.Equal(t, core.ModeActiveExaminer, reply.Mode)
	assert.Equal(t, core.SpeakerExaminer, reply.Speaker)
	assert.Equal(t, "BP 150/90, HR 102 regular, afebrile, chest clear.", reply.Text)
	assert.True(t, reply.Authoritative)
}

func TestExaminerKeepsFloorUntilResume(t *testing.T) {
	e, gw := fixtureEngine(t)
	gw.AddResponse("How bad is the pain?", "It's quite severe, a tight band.")
	sess, err := e.StartSession(context.Background(), "cardio-01", "candidate-1")
	require.NoError(t, err)

	_, err = e.SubmitUtterance(context.Background(), sess.ID, "Examiner, vitals please")
	require.NoError(t, err)

	// No marker needed while the examiner holds the floor.
	reply, err := e.SubmitUtterance(context.Background(), sess.ID, "and the heart sounds?")
	require.NoError(t, err)
	assert.Equal(t, core.SpeakerExaminer, reply.Speaker)
	assert.Equal(t, core.ModeActiveExaminer, reply.Mode)

	// Resume phrase returns the floor to the patient.
	reply, err = e.SubmitUtterance(context.Background(), sess.ID, "Thank you, back to the patient. How bad is the pain?")
	require.NoError(t, err)
	assert.Equal(t, core.SpeakerPatient, reply.Speaker)
	assert.Equal(t, core.ModeActivePatient, reply.Mode)
}

func TestResumePatientCall(t *testing.T) {
	e, _ := fixtureEngine(t)
	sess, err := e.StartSession(context.Background(), "cardio-01", "candidate-1")
	require.NoError(t, err)

	_, err = e.SubmitUtterance(context.Background(), sess.ID, "Examiner, vitals please")
	require.NoError(t, err)
	require.NoError(t, e.ResumePatient(sess.ID))

	state, err := e.SessionState(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ModeActivePatient, state.Mode)

	// Already in patient mode: no-op.
	assert.NoError(t, e.ResumePatient(sess.ID))
}

func TestRepeatedFindingsRequestIsStable(t *testing.T) {
	e, _ := fixtureEngine(t)
	sess, err := e.StartSession(context.Background(), "cardio-01", "candidate-1")
	require.NoError(t, err)

	first, err := e.SubmitUtterance(context.Background(), sess.ID, "Examiner, chest X-ray please")
	require.NoError(t, err)
	assert.False(t, first.Authoritative, "no imaging is authored for this case")

	second, err := e.SubmitUtterance(context.Background(), sess.ID, "Examiner, show me the X-ray again")
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)
}

func TestFailedGenerationKeepsCandidateTurn(t *testing.T) {
	e, gw := fixtureEngine(t)
	sess, err := e.StartSession(context.Background(), "cardio-01", "candidate-1")
	require.NoError(t, err)

	gw.Fail(true)
	_, err = e.SubmitUtterance(context.Background(), sess.ID, "Any allergies?")
	require.ErrorIs(t, err, core.ErrGenerationUnavailable)

	turns, err := e.Transcript(sess.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1, "the question stays, the reply is withheld")
	assert.Equal(t, core.SpeakerCandidate, turns[0].Speaker)
	assert.Equal(t, "Any allergies?", turns[0].Text)

	// The session remains usable once the provider recovers.
	gw.Fail(false)
	_, err = e.SubmitUtterance(context.Background(), sess.ID, "Any allergies?")
	assert.NoError(t, err)
}

func TestEndSessionLifecycle(t *testing.T) {
	e, _ := fixtureEngine(t)
	sess, err := e.StartSession(context.Background(), "cardio-01", "candidate-1")
	require.NoError(t, err)

	_, err = e.SubmitUtterance(context.Background(), sess.ID, "Tell me about your chest pain and when it started")
	require.NoError(t, err)

	report, err := e.EndSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, report.SessionID)
	assert.Len(t, report.Coverage, 2)

	state, err := e.SessionState(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ModeTerminated, state.Mode)
	assert.False(t, state.Active)
	assert.NotNil(t, state.Ended)

	stored, err := e.Feedback(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, stored.ID)

	_, err = e.SubmitUtterance(context.Background(), sess.ID, "one more question")
	assert.ErrorIs(t, err, core.ErrInvalidSessionState)

	_, err = e.EndSession(context.Background(), sess.ID)
	assert.ErrorIs(t, err, core.ErrInvalidSessionState)
}

func TestEndSessionNarrativePolishedByGateway(t *testing.T) {
	e, _ := fixtureEngine(t)
	sess, err := e.StartSession(context.Background(), "cardio-01", "candidate-1")
	require.NoError(t, err)

	_, err = e.SubmitUtterance(context.Background(), sess.ID, "Tell me about your chest pain and when it started")
	require.NoError(t, err)

	// The mock gateway echoes its input, so a polished section carries the
	// echo prefix while the scored facts survive inside it.
	report, err := e.EndSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(report.WhatWentWell, "Mock reply to: "))
	assert.Contains(t, report.WhatWentWell, "1 of 2")
	assert.True(t, strings.HasPrefix(report.Recommendations, "Mock reply to: "))
}

// flakyFeedback fails a configurable number of times before delegating.
type flakyFeedback struct {
	failures int
	inner    FeedbackGenerator
}

func (f *flakyFeedback) Generate(ctx context.Context, c *core.Case, sessionID string, turns []core.Turn) (*core.FeedbackReport, error) {
	if f.failures > 0 {
		f.failures--
		return nil, fmt.Errorf("%w: embedding provider down", core.ErrFeedbackGeneration)
	}
	return f.inner.Generate(ctx, c, sessionID, turns)
}

func TestEndSessionRetriesAfterFeedbackFailure(t *testing.T) {
	flaky := &flakyFeedback{failures: 1}
	e, _ := fixtureEngine(t, func(o *Options) { o.Feedback = flaky })
	// Wire the fallback generator after construction so the flaky wrapper can
	// delegate to a working one.
	working, _ := fixtureEngine(t)
	flaky.inner = working.feedback

	sess, err := e.StartSession(context.Background(), "cardio-01", "candidate-1")
	require.NoError(t, err)

	_, err = e.EndSession(context.Background(), sess.ID)
	require.ErrorIs(t, err, core.ErrFeedbackGeneration)

	// The session is still active and end_session can be retried.
	state, err := e.SessionState(sess.ID)
	require.NoError(t, err)
	assert.True(t, state.Active)

	report, err := e.EndSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.NotNil(t, report)
}

func TestHooksObserveLifecycle(t *testing.T) {
	var mu sync.Mutex
	var seen []HookType
	hook := func(ev HookEvent) {
		mu.Lock()
		seen = append(seen, ev.Type)
		mu.Unlock()
	}
	e, _ := fixtureEngine(t, WithHook(hook))

	sess, err := e.StartSession(context.Background(), "cardio-01", "candidate-1")
	require.NoError(t, err)
	_, err = e.SubmitUtterance(context.Background(), sess.ID, "Examiner, vitals please")
	require.NoError(t, err)
	_, err = e.EndSession(context.Background(), sess.ID)
	require.NoError(t, err)

	assert.Equal(t, []HookType{
		HookSessionStarted,
		HookTurnAppended, // candidate utterance
		HookModeChanged,  // -> ACTIVE_EXAMINER
		HookTurnAppended, // examiner reply
		HookSessionEnded,
	}, seen)
}

func TestConcurrentSubmissionsStayGapless(t *testing.T) {
	e, _ := fixtureEngine(t)
	sess, err := e.StartSession(context.Background(), "cardio-01", "candidate-1")
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := e.SubmitUtterance(context.Background(), sess.ID, fmt.Sprintf("question %d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	turns, err := e.Transcript(sess.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2*workers)
	for i, turn := range turns {
		assert.Equal(t, i+1, turn.Seq)
	}
	// Each question is immediately followed by its reply.
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, core.SpeakerCandidate, turns[i].Speaker)
		assert.NotEqual(t, core.SpeakerCandidate, turns[i+1].Speaker)
	}
}

func TestUnknownSession(t *testing.T) {
	e, _ := fixtureEngine(t)
	_, err := e.SubmitUtterance(context.Background(), "ghost", "hello")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	_, err = e.EndSession(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.ErrorIs(t, e.ResumePatient("ghost"), core.ErrSessionNotFound)
}
