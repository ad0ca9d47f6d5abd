package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscesim/oscesim/core"
	"github.com/oscesim/oscesim/internal/testutil"
	"github.com/oscesim/oscesim/model"
	"github.com/oscesim/oscesim/retrieval"
)

func scoringCase() *core.Case {
	return &core.Case{
		ID:       "cardio-01",
		Category: "cardiology",
		Approach: core.ReferenceApproach{
			Items: []core.ReferenceItem{
				{ID: "i1", Text: "Ask about chest pain onset and character"},
				{ID: "i2", Text: "Ask about radiation to arm or jaw"},
				{ID: "i3", Text: "Measure blood pressure and heart rate"},
				{ID: "i4", Text: "Order an electrocardiogram"},
				{ID: "i5", Text: "Order troponin levels"},
			},
			ManagementPlan: "Serial ECGs, troponin at 0 and 3 hours, cardiology referral.",
			Pitfalls: []core.ReferenceItem{
				{ID: "p1", Text: "Prescribing aspirin immediately"},
			},
		},
	}
}

func scoringTurns() []core.Turn {
	return testutil.NewTranscriptBuilder().
		Candidate("Tell me about your chest pain and when it started").
		Patient("It began two hours ago, a tight pressure.").
		Candidate("Does it spread to your arm or jaw?").
		Patient("Yes, into my left arm.").
		Candidate("Examiner, please check the blood pressure and heart rate").
		Examiner("BP 150/90, HR 102 regular.").
		Candidate("I will be prescribing aspirin immediately. Do you have any questions?").
		Patient("Alright, doctor.").
		Build()
}

func feedbackFixture(t *testing.T) (*FeedbackAgent, *model.MockGateway) {
	t.Helper()
	gw := model.NewMockGateway()
	index := retrieval.NewInMemoryIndex()
	for i, doc := range []struct {
		content  string
		category string
	}{
		{"Acute coronary syndrome workup: ECG within 10 minutes, serial troponins.", "cardiology"},
		{"Chest pain history: onset, character, radiation, associated symptoms.", "cardiology"},
		{"Asthma exacerbation management: nebulized salbutamol, steroids.", "respiratory"},
	} {
		vec, err := gw.Embed(context.Background(), doc.content)
		require.NoError(t, err)
		require.NoError(t, index.Add(retrieval.Document{
			ID:       fmt.Sprintf("doc-%d", i),
			Content:  doc.content,
			Vector:   vec,
			Metadata: map[string]string{"category": doc.category},
		}))
	}
	return NewFeedbackAgent(gw, index), gw
}

func TestFeedbackScoringAndVerdict(t *testing.T) {
	a, _ := feedbackFixture(t)

	report, err := a.Generate(context.Background(), scoringCase(), "sess-1", scoringTurns())
	require.NoError(t, err)

	// 3 of 5 equally weighted items covered, one pitfall triggered.
	assert.Equal(t, 3, report.CoveredCount())
	require.Len(t, report.PitfallsTriggered, 1)
	assert.Equal(t, "p1", report.PitfallsTriggered[0].ID)
	assert.Equal(t, 50.0, report.Score)
	assert.False(t, report.Passed)
	assert.Equal(t, "sess-1", report.SessionID)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestFeedbackRetrievalFilteredByCategory(t *testing.T) {
	a, _ := feedbackFixture(t)

	report, err := a.Generate(context.Background(), scoringCase(), "sess-1", scoringTurns())
	require.NoError(t, err)
	require.NotEmpty(t, report.Passages)
	for _, p := range report.Passages {
		assert.Equal(t, "cardiology", p.Metadata["category"])
	}
}

func TestFeedbackNarrativeSections(t *testing.T) {
	a, _ := feedbackFixture(t)

	report, err := a.Generate(context.Background(), scoringCase(), "sess-1", scoringTurns())
	require.NoError(t, err)

	assert.Contains(t, report.WhatWentWell, "3 of 5")
	assert.Contains(t, report.AreasForImprovement, "Order an electrocardiogram")
	assert.Contains(t, report.AreasForImprovement, "Pitfall noted: Prescribing aspirin immediately.")
	assert.Contains(t, report.Recommendations, "Order troponin levels")
	assert.Contains(t, report.Recommendations, "Serial ECGs")
}

func TestFeedbackDeterministicAcrossRuns(t *testing.T) {
	a, _ := feedbackFixture(t)
	c := scoringCase()
	turns := scoringTurns()

	first, err := a.Generate(context.Background(), c, "sess-1", turns)
	require.NoError(t, err)
	second, err := a.Generate(context.Background(), c, "sess-1", turns)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Coverage, second.Coverage)
	assert.Equal(t, first.PitfallsTriggered, second.PitfallsTriggered)
	assert.Equal(t, first.WhatWentWell, second.WhatWentWell)
}

func TestFeedbackWeightedItems(t *testing.T) {
	a, _ := feedbackFixture(t)
	c := scoringCase()
	c.Approach.Pitfalls = nil
	c.Approach.Items = []core.ReferenceItem{
		{ID: "i1", Text: "Ask about chest pain onset and character", Weight: 3},
		{ID: "i2", Text: "Order troponin levels", Weight: 1},
	}

	report, err := a.Generate(context.Background(), c, "sess-1", scoringTurns())
	require.NoError(t, err)
	assert.Equal(t, 75.0, report.Score)
	assert.True(t, report.Passed)
}

func TestFeedbackScoreClampedAtZero(t *testing.T) {
	a, _ := feedbackFixture(t)
	c := scoringCase()
	c.Approach.Items = []core.ReferenceItem{
		{ID: "i1", Text: "Order an electrocardiogram"},
	}
	c.Approach.Pitfalls = []core.ReferenceItem{
		{ID: "p1", Text: "Prescribing aspirin immediately"},
		{ID: "p2", Text: "Prescribing aspirin immediately"},
	}

	report, err := a.Generate(context.Background(), c, "sess-1", scoringTurns())
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.Score)
	assert.False(t, report.Passed)
}

func TestFeedbackComplianceChecks(t *testing.T) {
	a, _ := feedbackFixture(t)
	c := scoringCase()
	c.Approach.Pitfalls = nil
	turns := testutil.NewTranscriptBuilder().
		Candidate("You are probably having a myocardial infarction, calm down").
		Patient("That sounds frightening, doctor.").
		Candidate("Examiner, ECG and troponin please").
		Examiner("ECG shows inferior ST elevation.").
		Build()

	report, err := a.Generate(context.Background(), c, "sess-1", turns)
	require.NoError(t, err)

	var ids []string
	for _, p := range report.PitfallsTriggered {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, "compliance/jargon")
	assert.Contains(t, ids, "compliance/dismissive")
	assert.Contains(t, ids, "compliance/rapport")
	assert.Contains(t, ids, "compliance/concerns")
}

func TestFeedbackComplianceChecksSatisfied(t *testing.T) {
	a, _ := feedbackFixture(t)
	c := scoringCase()
	c.Approach.Pitfalls = nil
	turns := testutil.NewTranscriptBuilder().
		Candidate("How are you feeling right now?").
		Patient("I'm quite worried it could be my heart.").
		Candidate("I understand your concern, we will look into it together.").
		Patient("Thank you, doctor.").
		Build()

	report, err := a.Generate(context.Background(), c, "sess-1", turns)
	require.NoError(t, err)
	assert.Empty(t, report.PitfallsTriggered)
}

func TestFeedbackComplianceChecksDisabled(t *testing.T) {
	gw := model.NewMockGateway()
	a := NewFeedbackAgent(gw, retrieval.NewInMemoryIndex(), func(o *FeedbackAgentOptions) {
		o.ComplianceChecks = nil
	})
	c := scoringCase()
	c.Approach.Pitfalls = nil
	turns := testutil.NewTranscriptBuilder().
		Candidate("Calm down, it's just an idiopathic syncope").
		Patient("If you say so.").
		Build()

	report, err := a.Generate(context.Background(), c, "sess-1", turns)
	require.NoError(t, err)
	assert.Empty(t, report.PitfallsTriggered)
}

func TestFeedbackEmbeddingFailure(t *testing.T) {
	a, gw := feedbackFixture(t)
	gw.Fail(true)

	_, err := a.Generate(context.Background(), scoringCase(), "sess-1", scoringTurns())
	assert.ErrorIs(t, err, core.ErrFeedbackGeneration)
}

type failingRetriever struct{}

func (failingRetriever) Query(context.Context, []float32, int, map[string]string) ([]core.Passage, error) {
	return nil, fmt.Errorf("%w: connection refused", core.ErrRetrievalUnavailable)
}

func TestFeedbackRetrievalFailure(t *testing.T) {
	gw := model.NewMockGateway()
	a := NewFeedbackAgent(gw, failingRetriever{})

	_, err := a.Generate(context.Background(), scoringCase(), "sess-1", scoringTurns())
	assert.ErrorIs(t, err, core.ErrFeedbackGeneration)
	assert.ErrorIs(t, err, core.ErrRetrievalUnavailable)
}

func TestFeedbackPolishFallsBackOnError(t *testing.T) {
	gw := model.NewMockGateway()
	index := retrieval.NewInMemoryIndex()
	failing := &recordingGenerator{err: fmt.Errorf("%w: provider down", core.ErrGenerationUnavailable)}
	a := NewFeedbackAgent(gw, index, func(o *FeedbackAgentOptions) { o.Generator = failing })

	report, err := a.Generate(context.Background(), scoringCase(), "sess-1", scoringTurns())
	require.NoError(t, err, "polish failures must not fail the report")
	assert.True(t, strings.Contains(report.WhatWentWell, "3 of 5"))
}
