package intent

import (
	"regexp"
	"strings"

	"github.com/oscesim/oscesim/core"
)

// Target identifies the persona an utterance is addressed to.
type Target string

const (
	// TargetPatient routes the utterance to the patient persona.
	TargetPatient Target = "patient"
	// TargetExaminer routes the utterance to the examiner workflow.
	TargetExaminer Target = "examiner"
)

// Decision is the tagged classification result for one utterance. Category
// is meaningful only when Target is TargetExaminer. Resume reports that the
// utterance carried an explicit return-to-patient signal.
type Decision struct {
	Target   Target
	Category core.FindingCategory
	Resume   bool
}

// Classifier maps an utterance plus the session's current mode to a routing
// decision. Implementations must be deterministic: identical inputs yield
// identical decisions.
type Classifier interface {
	Classify(utterance string, mode core.Mode) Decision
}

// Routing policy, in order:
//  1. The address word "examiner" anywhere in the utterance routes to the
//     examiner regardless of the current mode.
//  2. In ACTIVE_EXAMINER mode, an explicit resume phrase returns control to
//     the patient; anything else stays with the examiner.
//  3. Otherwise the patient persona keeps the floor.
var (
	examinerMarker = regexp.MustCompile(`(?i)\bexaminer\b`)
	resumeMarkers  = []string{"resume patient", "back to the patient", "back to patient"}
)

// categoryKeywords drive findings-category labeling. Categories are scored by
// keyword hits; a unique maximum wins and ties resolve to CategoryOther. The
// slice is ordered so iteration, and therefore tie detection, is stable.
var categoryKeywords = []struct {
	category core.FindingCategory
	keywords []string
}{
	{core.CategoryHistory, []string{
		"history", "presenting complaint", "background", "social", "family",
		"medication history", "allergies",
	}},
	{core.CategoryPhysicalExam, []string{
		"examine", "examination", "look at", "check", "inspect", "observe",
		"palpate", "auscultate", "vital", "vitals", "blood pressure",
		"temperature", "pulse", "heart rate",
	}},
	{core.CategoryInvestigations, []string{
		"lab", "labs", "blood", "test", "tests", "result", "results",
		"investigation", "investigations", "urine", "culture", "ecg",
	}},
	{core.CategoryImaging, []string{
		"x-ray", "xray", "ct", "mri", "scan", "imaging", "ultrasound",
	}},
}

// LexicalClassifier implements Classifier with case-insensitive keyword
// matching.
type LexicalClassifier struct{}

var _ Classifier = (*LexicalClassifier)(nil)

// NewLexicalClassifier constructs the default classifier.
func NewLexicalClassifier() *LexicalClassifier { return &LexicalClassifier{} }

// Classify implements Classifier.
func (c *LexicalClassifier) Classify(utterance string, mode core.Mode) Decision {
	// Drop the address word itself so it cannot bleed into category keywords
	// ("examiner" would otherwise hit "examine").
	lower := examinerMarker.ReplaceAllString(strings.ToLower(utterance), " ")

	if examinerMarker.MatchString(utterance) {
		return Decision{Target: TargetExaminer, Category: classifyCategory(lower)}
	}

	if mode == core.ModeActiveExaminer {
		if hasResumeMarker(lower) {
			return Decision{Target: TargetPatient, Resume: true}
		}
		// No marker and no resume signal: the examiner keeps the floor.
		return Decision{Target: TargetExaminer, Category: classifyCategory(lower)}
	}

	return Decision{Target: TargetPatient}
}

func hasResumeMarker(lower string) bool {
	for _, marker := range resumeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// classifyCategory scores each category against the lowercased utterance.
// Single-word keywords must match a whole token; multiword or hyphenated
// keywords match as substrings and score double, so "blood pressure"
// outranks the bare "blood" of investigations. A unique maximum wins; zero
// hits or a tie yields CategoryOther.
func classifyCategory(lower string) core.FindingCategory {
	words := tokenize(lower)

	best := core.CategoryOther
	bestScore := 0
	tied := false
	for _, entry := range categoryKeywords {
		score := 0
		for _, kw := range entry.keywords {
			if strings.ContainsAny(kw, " -") {
				if strings.Contains(lower, kw) {
					score += 2
				}
			} else if words[kw] {
				score++
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = entry.category, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return core.CategoryOther
	}
	return best
}

func tokenize(lower string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		words[w] = true
	}
	return words
}
