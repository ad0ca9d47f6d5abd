// Package casebank houses concrete implementations of core.CaseStore, the
// read-only repository of exam case definitions. Cases are authored outside
// this system; the stores here only load them.
//
// InMemoryStore serves tests and embedded fixtures. The sqlite sub-package
// reads the authored case database shipped with the reference corpus.
package casebank
