package agent

import "strings"

// stopWords are excluded from coverage matching so that only meaningful
// clinical terms decide whether a reference item was addressed.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "about": true,
	"any": true, "are": true, "was": true, "were": true, "has": true,
	"have": true, "had": true, "you": true, "your": true, "their": true,
	"this": true, "that": true, "they": true, "them": true, "from": true,
	"into": true, "out": true, "not": true, "but": true, "all": true,
	"ask": true, "how": true, "what": true, "when": true, "where": true,
	"whether": true, "would": true, "should": true, "could": true,
	"patient": true, "patients": true,
}

// significantKeywords returns the lowercased tokens of text longer than two
// characters that are not stop words, deduplicated in first-seen order.
func significantKeywords(text string) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, w := range tokenizeWords(text) {
		if len(w) <= 2 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
	}
	return keywords
}

// tokenizeWords splits lowercased text on non-alphanumeric runes.
func tokenizeWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

// wordSet builds a membership set of a transcript's tokens.
func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range tokenizeWords(text) {
		set[w] = true
	}
	return set
}

// matchesItem reports whether at least half of the item's significant
// keywords occur in the transcript word set. Items with no significant
// keywords never match. The rule is purely lexical so identical inputs
// always produce identical coverage.
func matchesItem(transcript map[string]bool, itemText string) bool {
	keywords := significantKeywords(itemText)
	if len(keywords) == 0 {
		return false
	}
	hits := 0
	for _, kw := range keywords {
		if transcript[kw] {
			hits++
		}
	}
	return hits*2 >= len(keywords)
}
