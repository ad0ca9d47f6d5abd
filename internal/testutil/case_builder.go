package testutil

import (
	"github.com/oscesim/oscesim/core"
)

// CaseBuilder helps construct exam cases with fluent chaining for tests.
// Example:
//
//	c := testutil.NewCaseBuilder("cardio-01").
//	    Instructions("You are a 54-year-old man with chest pain.").
//	    Finding(core.CategoryPhysicalExam, "BP 150/90, HR 102.").
//	    Item("i1", "Ask about chest pain onset", 1).
//	    Build()
type CaseBuilder struct {
	c core.Case
}

// NewCaseBuilder creates a builder for a case with the given id.
func NewCaseBuilder(id string) *CaseBuilder {
	return &CaseBuilder{c: core.Case{ID: id}}
}

// Category sets the clinical category used for retrieval filtering (chainable).
func (b *CaseBuilder) Category(category string) *CaseBuilder {
	b.c.Category = category
	return b
}

// Instructions sets the patient persona instructions (chainable).
func (b *CaseBuilder) Instructions(text string) *CaseBuilder {
	b.c.PatientInstructions = text
	return b
}

// Finding authors examiner material for a category (chainable).
func (b *CaseBuilder) Finding(category core.FindingCategory, text string) *CaseBuilder {
	if b.c.Findings == nil {
		b.c.Findings = make(map[core.FindingCategory]string)
	}
	b.c.Findings[category] = text
	return b
}

// Item appends a reference approach item (chainable).
func (b *CaseBuilder) Item(id, text string, weight float64) *CaseBuilder {
	b.c.Approach.Items = append(b.c.Approach.Items, core.ReferenceItem{ID: id, Text: text, Weight: weight})
	return b
}

// Pitfall appends a known pitfall (chainable).
func (b *CaseBuilder) Pitfall(id, text string) *CaseBuilder {
	b.c.Approach.Pitfalls = append(b.c.Approach.Pitfalls, core.ReferenceItem{ID: id, Text: text})
	return b
}

// Plan sets the reference management plan (chainable).
func (b *CaseBuilder) Plan(text string) *CaseBuilder {
	b.c.Approach.ManagementPlan = text
	return b
}

// Build returns the assembled *core.Case.
func (b *CaseBuilder) Build() *core.Case {
	c := b.c
	return &c
}
