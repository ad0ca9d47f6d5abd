package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oscesim/oscesim/core"
	"github.com/oscesim/oscesim/logging"
	"github.com/oscesim/oscesim/model"
)

// examinerFallbackInstructions drive the generative tier when the case
// authors provided no material for a requested category. Low creativity is
// wanted: a brief, clinically unremarkable result.
const examinerFallbackInstructions = `You are the examiner in a clinical examination simulation.
The case material contains no authored findings for the requested category.
State a brief, clinically plausible normal (unremarkable) finding for the
request. One short paragraph, no preamble, no interpretation or advice.`

// ExaminerAgentOptions configure an ExaminerAgent.
type ExaminerAgentOptions struct {
	Logger logging.Logger
}

// ExaminerAgent answers examiner-directed requests with a two-tier strategy:
// findings authored in the case are returned verbatim and marked
// authoritative; absent categories fall back to a generated plausible-normal
// finding marked non-authoritative so downstream scoring can discount it.
// Disclosed findings are memoized in the session's AgentState, so repeating a
// request returns the identical answer instead of re-rolling.
type ExaminerAgent struct {
	gen    model.Generator
	logger logging.Logger
}

// NewExaminerAgent creates an ExaminerAgent.
func NewExaminerAgent(gen model.Generator, optFns ...func(o *ExaminerAgentOptions)) *ExaminerAgent {
	opts := ExaminerAgentOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ExaminerAgent{gen: gen, logger: opts.Logger}
}

// Respond returns the finding for the classified category. state is the
// per-session disclosure memo owned by the orchestrator.
func (a *ExaminerAgent) Respond(ctx context.Context, c *core.Case, state *core.AgentState, category core.FindingCategory, utterance string) (core.Finding, error) {
	if f, ok := state.Disclosed[category]; ok {
		return f, nil
	}

	if text, ok := c.Findings[category]; ok {
		f := core.Finding{Category: category, Text: text, Authoritative: true}
		state.Disclosed[category] = f
		return f, nil
	}

	req := model.Request{
		Instructions: examinerFallbackInstructions,
		Input:        fmt.Sprintf("Category: %s\nRequest: %s", category, utterance),
	}
	start := time.Now()
	raw, err := a.gen.Generate(ctx, req)
	logging.LogModelCall(a.logger, a.gen.Info().Provider, a.gen.Info().Name, time.Since(start), err)
	if err != nil {
		return core.Finding{}, fmt.Errorf("examiner fallback for %s: %w", category, err)
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return core.Finding{}, fmt.Errorf("%w: empty examiner finding", core.ErrGenerationUnavailable)
	}
	f := core.Finding{Category: category, Text: text, Authoritative: false}
	state.Disclosed[category] = f
	return f, nil
}
