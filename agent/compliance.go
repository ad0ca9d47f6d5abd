package agent

import (
	"strings"

	"github.com/oscesim/oscesim/core"
)

// ComplianceCheck flags a communication pitfall in the candidate's conduct
// that case authors do not have to spell out per case. Detect is purely
// lexical over the turn log so reports stay deterministic.
type ComplianceCheck struct {
	Item   core.ReferenceItem
	Detect func(turns []core.Turn) bool
}

// DefaultComplianceChecks returns the built-in conduct checks: unexplained
// medical jargon directed at the patient, dismissive language toward the
// patient, failing to maintain rapport during the encounter, and leaving a
// voiced concern unaddressed.
func DefaultComplianceChecks() []ComplianceCheck {
	return []ComplianceCheck{
		{
			Item: core.ReferenceItem{
				ID:   "compliance/jargon",
				Text: "Used unexplained medical jargon when speaking to the patient",
			},
			Detect: usedUnexplainedJargon,
		},
		{
			Item: core.ReferenceItem{
				ID:   "compliance/dismissive",
				Text: "Dismissed the patient's concerns instead of addressing them",
			},
			Detect: usedDismissiveLanguage,
		},
		{
			Item: core.ReferenceItem{
				ID:   "compliance/rapport",
				Text: "Did not maintain rapport with the patient during the encounter",
			},
			Detect: neglectedRapport,
		},
		{
			Item: core.ReferenceItem{
				ID:   "compliance/concerns",
				Text: "Left a concern voiced by the patient unaddressed",
			},
			Detect: leftConcernsUnaddressed,
		},
	}
}

// jargonTerms are technical terms a patient cannot be assumed to understand.
var jargonTerms = map[string]bool{
	"myocardial": true, "infarction": true, "infarct": true,
	"ischemia": true, "ischaemia": true, "ischemic": true,
	"idiopathic": true, "iatrogenic": true,
	"dyspnea": true, "dyspnoea": true, "syncope": true,
	"stenosis": true, "embolism": true, "effusion": true,
	"tachycardia": true, "bradycardia": true, "pleuritic": true,
	"contraindication": true, "contraindicated": true,
	"pathophysiology": true, "pathological": true,
	"etiology": true, "aetiology": true,
	"prognosis": true, "prognostic": true,
}

var dismissivePhrases = []string{
	"calm down",
	"don't worry",
	"nothing to worry about",
	"it's nothing",
	"stop worrying",
}

// rapportPhrases mark a candidate actively checking in with the patient.
var rapportPhrases = []string{
	"how are you feeling",
	"how do you feel",
	"is there anything else",
	"do you have any questions",
	"does that make sense",
	"are you comfortable",
}

// concernWords mark a patient voicing worry or fear.
var concernWords = map[string]bool{
	"worried": true, "worry": true, "worrying": true, "worries": true,
	"scared": true, "afraid": true, "anxious": true, "fear": true,
	"frightened": true, "frightening": true,
}

// acknowledgmentWords mark a candidate engaging with a voiced concern.
var acknowledgmentWords = map[string]bool{
	"understand": true, "understandable": true,
	"concern": true, "concerns": true, "concerned": true,
}

// usedUnexplainedJargon reports whether any patient-directed candidate turn
// contains a jargon term. A candidate turn counts as patient-directed when
// the patient answers it; examiner exchanges may use technical language
// freely.
func usedUnexplainedJargon(turns []core.Turn) bool {
	for i, t := range turns {
		if t.Speaker != core.SpeakerCandidate {
			continue
		}
		if i+1 >= len(turns) || turns[i+1].Speaker != core.SpeakerPatient {
			continue
		}
		for _, w := range tokenizeWords(t.Text) {
			if jargonTerms[w] {
				return true
			}
		}
	}
	return false
}

// usedDismissiveLanguage reports whether any candidate turn contains a
// dismissive phrase.
func usedDismissiveLanguage(turns []core.Turn) bool {
	for _, t := range turns {
		if t.Speaker != core.SpeakerCandidate {
			continue
		}
		lower := strings.ToLower(t.Text)
		for _, phrase := range dismissivePhrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
	}
	return false
}

// neglectedRapport reports whether the candidate never checked in with the
// patient. It only applies once the patient has actually spoken; a purely
// examiner-facing exchange carries no rapport obligation.
func neglectedRapport(turns []core.Turn) bool {
	patientSpoke := false
	for _, t := range turns {
		switch t.Speaker {
		case core.SpeakerPatient:
			patientSpoke = true
		case core.SpeakerCandidate:
			lower := strings.ToLower(t.Text)
			for _, phrase := range rapportPhrases {
				if strings.Contains(lower, phrase) {
					return false
				}
			}
		}
	}
	return patientSpoke
}

// leftConcernsUnaddressed reports whether the patient voiced worry or fear
// that no later candidate turn acknowledged.
func leftConcernsUnaddressed(turns []core.Turn) bool {
	for i, t := range turns {
		if t.Speaker != core.SpeakerPatient {
			continue
		}
		voiced := false
		for _, w := range tokenizeWords(t.Text) {
			if concernWords[w] {
				voiced = true
				break
			}
		}
		if !voiced {
			continue
		}
		addressed := false
		for _, later := range turns[i+1:] {
			if later.Speaker != core.SpeakerCandidate {
				continue
			}
			for _, w := range tokenizeWords(later.Text) {
				if acknowledgmentWords[w] {
					addressed = true
					break
				}
			}
			if addressed {
				break
			}
		}
		if !addressed {
			return true
		}
	}
	return false
}
