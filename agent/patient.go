package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oscesim/oscesim/core"
	"github.com/oscesim/oscesim/logging"
	"github.com/oscesim/oscesim/model"
)

// patientGuidelines are appended to every case's persona instructions. They
// pin the persona to the authored material so the patient never invents
// findings or leaks scoring information.
const patientGuidelines = `
You are role-playing as the patient described above in a clinical examination simulation.

Guidelines:
1. Stay completely in character as the patient described above.
2. Only state information present in your persona; if asked about something
   not covered, answer as the patient would ("I don't know", "I'm not sure").
3. Never reveal examination findings, scoring criteria, or case commentary.
4. Stay consistent with symptoms and background you have already stated.
5. Respond naturally and conversationally, from the patient's perspective only.
6. Do not break character or mention that you are simulated.`

// PatientAgentOptions configure a PatientAgent.
type PatientAgentOptions struct {
	// MemoryWindow is the number of most recent conversation turns included
	// in each generation call.
	MemoryWindow int
	Logger       logging.Logger
}

// PatientAgent produces in-character patient replies. Consistency across the
// session comes from replaying the memory window on every call, not from any
// external fact store.
type PatientAgent struct {
	gen    model.Generator
	window int
	logger logging.Logger
}

// NewPatientAgent creates a PatientAgent with a 15-turn memory window.
func NewPatientAgent(gen model.Generator, optFns ...func(o *PatientAgentOptions)) *PatientAgent {
	opts := PatientAgentOptions{
		MemoryWindow: 15,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &PatientAgent{gen: gen, window: opts.MemoryWindow, logger: opts.Logger}
}

// Reply generates the patient's answer to utterance. history is the turn log
// up to but excluding the current utterance. On gateway failure the error
// wraps core.ErrGenerationUnavailable and no reply is fabricated.
func (a *PatientAgent) Reply(ctx context.Context, c *core.Case, history []core.Turn, utterance string) (string, error) {
	req := model.Request{
		Instructions: c.PatientInstructions + "\n" + patientGuidelines,
		History:      patientHistoryWindow(history, a.window),
		Input:        utterance,
	}

	start := time.Now()
	raw, err := a.gen.Generate(ctx, req)
	logging.LogModelCall(a.logger, a.gen.Info().Provider, a.gen.Info().Name, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("patient reply: %w", err)
	}

	reply := cleanPatientReply(raw)
	if reply == "" {
		return "", fmt.Errorf("%w: empty patient reply", core.ErrGenerationUnavailable)
	}
	return reply, nil
}

// patientHistoryWindow maps the most recent turns of the patient conversation
// into gateway messages. Examiner exchanges are not part of the patient's
// world and are excluded.
func patientHistoryWindow(turns []core.Turn, window int) []model.Message {
	messages := make([]model.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Speaker {
		case core.SpeakerCandidate:
			messages = append(messages, model.Message{Role: "user", Text: t.Text})
		case core.SpeakerPatient:
			messages = append(messages, model.Message{Role: "assistant", Text: t.Text})
		}
	}
	if window > 0 && len(messages) > window {
		messages = messages[len(messages)-window:]
	}
	return messages
}

var (
	speakerPrefix  = regexp.MustCompile(`(?i)^(patient)\s*:\s*`)
	parentheticals = regexp.MustCompile(`\s*\(Note:[^)]*\)`)
	bracketAsides  = regexp.MustCompile(`\s*\[[^\]]*\]`)
)

// cleanPatientReply strips role prefixes and meta asides the model sometimes
// emits and ensures the reply ends with punctuation.
func cleanPatientReply(raw string) string {
	reply := speakerPrefix.ReplaceAllString(strings.TrimSpace(raw), "")
	reply = parentheticals.ReplaceAllString(reply, "")
	reply = bracketAsides.ReplaceAllString(reply, "")
	reply = strings.TrimSpace(reply)
	if reply != "" && !strings.ContainsRune(".!?", rune(reply[len(reply)-1])) {
		reply += "."
	}
	return reply
}
