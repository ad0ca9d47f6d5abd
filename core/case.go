package core

// FindingCategory labels the kind of examination finding a candidate can
// request from the examiner. The set is fixed; classification of free-text
// requests into these labels is best effort (see the intent package).
type FindingCategory string

const (
	// CategoryHistory covers additional history not volunteered by the patient.
	CategoryHistory FindingCategory = "history"
	// CategoryPhysicalExam covers bedside examination findings including vitals.
	CategoryPhysicalExam FindingCategory = "physical_exam"
	// CategoryInvestigations covers laboratory and other test results.
	CategoryInvestigations FindingCategory = "investigations"
	// CategoryImaging covers radiology results.
	CategoryImaging FindingCategory = "imaging"
	// CategoryOther is the fallback when no category matches unambiguously.
	CategoryOther FindingCategory = "other"
)

// ReferenceItem is a single expected action or question from a case's
// reference approach. Weight scales the item's contribution to the coverage
// fraction; a zero weight is treated as 1.0 by the scorer.
type ReferenceItem struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Weight float64 `json:"weight,omitempty"`
}

// ReferenceApproach is the case author's model answer: the items a candidate
// is expected to cover, the management plan, and the known pitfalls whose
// presence in a transcript counts against the score.
type ReferenceApproach struct {
	Items          []ReferenceItem `json:"items"`
	ManagementPlan string          `json:"management_plan,omitempty"`
	Pitfalls       []ReferenceItem `json:"pitfalls,omitempty"`
}

// Case is an immutable exam case definition owned by the case repository.
// Findings holds the authored examiner material keyed by category; absence of
// a category triggers the examiner agent's generative fallback.
type Case struct {
	ID                  string                     `json:"id"`
	Category            string                     `json:"category,omitempty"`
	PatientInstructions string                     `json:"patient_instructions"`
	Findings            map[FindingCategory]string `json:"findings,omitempty"`
	Approach            ReferenceApproach          `json:"approach"`
}

// Finding is an examiner answer for one category. Authoritative findings are
// quoted from the case material; non-authoritative ones were generated as a
// plausible normal result and must be discounted by downstream scoring.
type Finding struct {
	Category      FindingCategory `json:"category"`
	Text          string          `json:"text"`
	Authoritative bool            `json:"authoritative"`
}

// AgentState is the orchestrator-owned working state of one session's persona
// agents. It tracks which finding categories have already been disclosed so
// repeat requests return the same answer instead of re-rolling. It is never
// shared across sessions and relies on the orchestrator's per-session
// serialization for safety.
type AgentState struct {
	Disclosed map[FindingCategory]Finding
}

// NewAgentState returns an empty per-session agent state.
func NewAgentState() *AgentState {
	return &AgentState{Disclosed: make(map[FindingCategory]Finding)}
}
