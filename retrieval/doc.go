// Package retrieval houses concrete implementations of core.Retriever, the
// vector similarity search contract over an already-built reference index.
// Corpus ingestion (extraction, chunking, embedding) happens elsewhere; these
// stores only answer top-k queries.
//
// InMemoryIndex performs an exact cosine scan and suits tests and small
// corpora. The pgvector sub-package backs the same contract with PostgreSQL
// for production-sized indexes.
package retrieval
