package core

import "time"

// Passage is a reference document excerpt returned by a Retriever, ordered by
// descending similarity score.
type Passage struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CoverageItem records whether one reference approach item was addressed in
// the transcript.
type CoverageItem struct {
	Item    ReferenceItem `json:"item"`
	Covered bool          `json:"covered"`
}

// FeedbackReport is the scored artifact produced once per session at
// termination. It is immutable after creation; a report exists if and only if
// its session is terminated.
type FeedbackReport struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`

	Score  float64 `json:"score"` // 0-100
	Passed bool    `json:"passed"`

	Coverage          []CoverageItem `json:"coverage"`
	PitfallsTriggered []ReferenceItem `json:"pitfalls_triggered,omitempty"`
	Passages          []Passage       `json:"passages,omitempty"`

	WhatWentWell        string `json:"what_went_well"`
	AreasForImprovement string `json:"areas_for_improvement"`
	Recommendations     string `json:"recommendations"`

	GeneratedAt time.Time `json:"generated_at"`
}

// CoveredCount returns how many reference items were addressed.
func (r *FeedbackReport) CoveredCount() int {
	n := 0
	for _, c := range r.Coverage {
		if c.Covered {
			n++
		}
	}
	return n
}

// MissedItems returns the reference items not addressed in the transcript,
// preserving reference approach order.
func (r *FeedbackReport) MissedItems() []ReferenceItem {
	var missed []ReferenceItem
	for _, c := range r.Coverage {
		if !c.Covered {
			missed = append(missed, c.Item)
		}
	}
	return missed
}
