package testutil

import (
	"time"

	"github.com/oscesim/oscesim/core"
)

// TranscriptBuilder assembles turn logs with fluent chaining for tests.
// Sequence numbers are assigned in append order starting at 1.
type TranscriptBuilder struct {
	turns []core.Turn
}

// NewTranscriptBuilder creates an empty transcript builder.
func NewTranscriptBuilder() *TranscriptBuilder {
	return &TranscriptBuilder{}
}

// Candidate appends a candidate turn (chainable).
func (b *TranscriptBuilder) Candidate(text string) *TranscriptBuilder {
	return b.turn(core.SpeakerCandidate, text)
}

// Patient appends a patient turn (chainable).
func (b *TranscriptBuilder) Patient(text string) *TranscriptBuilder {
	return b.turn(core.SpeakerPatient, text)
}

// Examiner appends an examiner turn (chainable).
func (b *TranscriptBuilder) Examiner(text string) *TranscriptBuilder {
	return b.turn(core.SpeakerExaminer, text)
}

func (b *TranscriptBuilder) turn(speaker core.Speaker, text string) *TranscriptBuilder {
	b.turns = append(b.turns, core.Turn{
		Seq:       len(b.turns) + 1,
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	return b
}

// Build returns the assembled turn log.
func (b *TranscriptBuilder) Build() []core.Turn {
	turns := make([]core.Turn, len(b.turns))
	copy(turns, b.turns)
	return turns
}
