package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oscesim/oscesim/core"
	"github.com/oscesim/oscesim/logging"
	"github.com/oscesim/oscesim/model"
)

// feedbackPolishInstructions drive the optional narrative rewrite. The scored
// facts are already fixed; the model only rephrases them.
const feedbackPolishInstructions = `You are a clinical examiner writing feedback for a candidate.
Rewrite the draft section below into two or three encouraging, professional
sentences. Keep every clinical fact exactly as given; do not add findings,
scores, or advice that are not in the draft. Reply with the rewritten section
only.`

// FeedbackAgentOptions configure a FeedbackAgent.
type FeedbackAgentOptions struct {
	// TopK is the number of reference passages retrieved for the report.
	TopK int
	// PassThreshold is the minimum score counted as a pass.
	PassThreshold float64
	// PitfallPenalty is subtracted from the score per triggered pitfall.
	PitfallPenalty float64
	// ComplianceChecks are conduct pitfalls applied to every case on top of
	// the case-authored ones. Defaults to DefaultComplianceChecks(); set to
	// nil to score against case pitfalls only.
	ComplianceChecks []ComplianceCheck
	// Generator, when set, rewrites the narrative sections. Scoring never
	// depends on it; on any generation error the deterministic draft stands.
	Generator model.Generator
	Logger    logging.Logger
}

// FeedbackAgent scores a finished session transcript against the case's
// reference approach and assembles the feedback report. The score is a pure
// function of the transcript and the case: coverage and pitfall detection are
// lexical, so re-running the same transcript yields the same report body.
type FeedbackAgent struct {
	emb       model.Embedder
	retriever core.Retriever
	opts      FeedbackAgentOptions
}

// NewFeedbackAgent creates a FeedbackAgent. Defaults: top-5 passages, pass
// threshold 60, pitfall penalty 10.
func NewFeedbackAgent(emb model.Embedder, retriever core.Retriever, optFns ...func(o *FeedbackAgentOptions)) *FeedbackAgent {
	opts := FeedbackAgentOptions{
		TopK:             5,
		PassThreshold:    60,
		PitfallPenalty:   10,
		ComplianceChecks: DefaultComplianceChecks(),
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &FeedbackAgent{emb: emb, retriever: retriever, opts: opts}
}

// Generate builds the feedback report for a session's full turn log. Only
// candidate-authored turns count toward coverage and pitfalls. Embedding or
// retrieval failures abort the report with an error wrapping
// core.ErrFeedbackGeneration; no partial report is produced.
func (a *FeedbackAgent) Generate(ctx context.Context, c *core.Case, sessionID string, turns []core.Turn) (*core.FeedbackReport, error) {
	transcript := candidateTranscript(turns)

	vec, err := a.emb.Embed(ctx, transcript)
	if err != nil {
		return nil, fmt.Errorf("%w: embed transcript: %w", core.ErrFeedbackGeneration, err)
	}

	var filter map[string]string
	if c.Category != "" {
		filter = map[string]string{"category": c.Category}
	}
	passages, err := a.retriever.Query(ctx, vec, a.opts.TopK, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve reference passages: %w", core.ErrFeedbackGeneration, err)
	}

	words := wordSet(transcript)
	coverage := evaluateCoverage(words, c.Approach.Items)
	pitfalls := detectPitfalls(words, c.Approach.Pitfalls)
	for _, check := range a.opts.ComplianceChecks {
		if check.Detect(turns) {
			pitfalls = append(pitfalls, check.Item)
		}
	}

	score := a.score(coverage, len(pitfalls))
	report := &core.FeedbackReport{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		Score:             score,
		Passed:            score >= a.opts.PassThreshold,
		Coverage:          coverage,
		PitfallsTriggered: pitfalls,
		Passages:          passages,
		GeneratedAt:       time.Now().UTC(),
	}
	report.WhatWentWell = a.polish(ctx, draftWhatWentWell(report))
	report.AreasForImprovement = a.polish(ctx, draftAreasForImprovement(report))
	report.Recommendations = a.polish(ctx, draftRecommendations(report, c))
	return report, nil
}

// score computes the weighted coverage percentage minus pitfall penalties,
// clamped to [0, 100]. Zero item weights count as 1. A case with no reference
// items scores 0; such a case cannot be passed and authors are expected to
// provide at least one item.
func (a *FeedbackAgent) score(coverage []core.CoverageItem, pitfalls int) float64 {
	var total, covered float64
	for _, cov := range coverage {
		w := cov.Item.Weight
		if w == 0 {
			w = 1
		}
		total += w
		if cov.Covered {
			covered += w
		}
	}
	score := 0.0
	if total > 0 {
		score = 100 * covered / total
	}
	score -= a.opts.PitfallPenalty * float64(pitfalls)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// polish rewrites a narrative section through the optional generator. The
// deterministic draft is always the fallback.
func (a *FeedbackAgent) polish(ctx context.Context, draft string) string {
	if a.opts.Generator == nil || draft == "" {
		return draft
	}
	start := time.Now()
	out, err := a.opts.Generator.Generate(ctx, model.Request{
		Instructions: feedbackPolishInstructions,
		Input:        draft,
	})
	logging.LogModelCall(a.opts.Logger, a.opts.Generator.Info().Provider, a.opts.Generator.Info().Name, time.Since(start), err)
	if err != nil || strings.TrimSpace(out) == "" {
		a.opts.Logger.Warn("feedback polish skipped, keeping draft", "error", errString(err))
		return draft
	}
	return strings.TrimSpace(out)
}

func errString(err error) string {
	if err == nil {
		return "empty output"
	}
	return err.Error()
}

// candidateTranscript joins the candidate's own utterances. Patient and
// examiner turns never earn or lose credit.
func candidateTranscript(turns []core.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		if t.Speaker != core.SpeakerCandidate {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

// evaluateCoverage marks each reference item covered or missed, preserving
// authoring order.
func evaluateCoverage(words map[string]bool, items []core.ReferenceItem) []core.CoverageItem {
	coverage := make([]core.CoverageItem, len(items))
	for i, item := range items {
		coverage[i] = core.CoverageItem{Item: item, Covered: matchesItem(words, item.Text)}
	}
	return coverage
}

// detectPitfalls returns the pitfalls whose keywords appear in the
// candidate's own words.
func detectPitfalls(words map[string]bool, pitfalls []core.ReferenceItem) []core.ReferenceItem {
	var triggered []core.ReferenceItem
	for _, p := range pitfalls {
		if matchesItem(words, p.Text) {
			triggered = append(triggered, p)
		}
	}
	return triggered
}

func draftWhatWentWell(r *core.FeedbackReport) string {
	covered := r.CoveredCount()
	if covered == 0 {
		return "The station was attempted, but none of the expected steps of the reference approach were clearly addressed."
	}
	var names []string
	for _, cov := range r.Coverage {
		if cov.Covered {
			names = append(names, cov.Item.Text)
		}
	}
	return fmt.Sprintf("You addressed %d of %d expected steps, including: %s.",
		covered, len(r.Coverage), strings.Join(names, "; "))
}

func draftAreasForImprovement(r *core.FeedbackReport) string {
	var parts []string
	if missed := r.MissedItems(); len(missed) > 0 {
		names := make([]string, len(missed))
		for i, item := range missed {
			names[i] = item.Text
		}
		parts = append(parts, fmt.Sprintf("The following expected steps were not addressed: %s.", strings.Join(names, "; ")))
	}
	for _, p := range r.PitfallsTriggered {
		parts = append(parts, fmt.Sprintf("Pitfall noted: %s.", p.Text))
	}
	if len(parts) == 0 {
		return "All expected steps were addressed and no pitfalls were noted."
	}
	return strings.Join(parts, " ")
}

func draftRecommendations(r *core.FeedbackReport, c *core.Case) string {
	var parts []string
	missed := r.MissedItems()
	if len(missed) > 3 {
		missed = missed[:3]
	}
	for _, item := range missed {
		parts = append(parts, fmt.Sprintf("Next time, make sure to: %s.", item.Text))
	}
	if c.Approach.ManagementPlan != "" {
		parts = append(parts, fmt.Sprintf("Review the recommended management plan: %s", c.Approach.ManagementPlan))
	}
	if len(parts) == 0 {
		return "Keep practicing with further stations to consolidate this performance."
	}
	return strings.Join(parts, " ")
}
