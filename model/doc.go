// Package model defines the provider-agnostic Language-Model Gateway used by
// the persona agents: text generation given instructions plus conversation
// history, and text embedding for retrieval queries.
//
// Core goals:
//   - Keep request shapes minimal and transport independent
//   - Split generation (Generator) from embedding (Embedder) so vendors that
//     lack one capability can still serve the other
//   - Facilitate deterministic mocking for tests (MockGateway)
//
// Providers (OpenAI, Anthropic) implement these interfaces in sub-packages so
// higher layers remain decoupled from vendor SDKs. All calls are blocking,
// honor ctx cancellation/timeouts, and surface transport or provider failures
// as core.ErrGenerationUnavailable.
package model
