package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/oscesim/oscesim/core"
)

// Document is one indexed reference passage with its embedding.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// InMemoryIndex is a process-local core.Retriever performing an exact cosine
// similarity scan over all indexed documents. Results are ordered by
// descending score with document id as the tie-breaker, so identical queries
// always return identical rankings.
type InMemoryIndex struct {
	mu   sync.RWMutex
	docs []Document
}

var _ core.Retriever = (*InMemoryIndex)(nil)

// NewInMemoryIndex constructs an empty index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{}
}

// Add indexes a document. Documents with empty vectors are rejected.
func (ix *InMemoryIndex) Add(doc Document) error {
	if len(doc.Vector) == 0 {
		return fmt.Errorf("document %q has an empty vector", doc.ID)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs = append(ix.docs, doc)
	return nil
}

// Len returns the number of indexed documents.
func (ix *InMemoryIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Query implements core.Retriever.
func (ix *InMemoryIndex) Query(ctx context.Context, vector []float32, k int, filter map[string]string) ([]core.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRetrievalUnavailable, err)
	}
	if k <= 0 {
		return []core.Passage{}, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	passages := make([]core.Passage, 0, len(ix.docs))
	for _, doc := range ix.docs {
		if !matchesFilter(doc.Metadata, filter) {
			continue
		}
		score, err := cosine(vector, doc.Vector)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrRetrievalUnavailable, err)
		}
		md := make(map[string]string, len(doc.Metadata))
		for key, v := range doc.Metadata {
			md[key] = v
		}
		passages = append(passages, core.Passage{ID: doc.ID, Content: doc.Content, Score: score, Metadata: md})
	}

	sort.Slice(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].ID < passages[j].ID
	})
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}

// matchesFilter reports whether metadata contains every filter pair.
func matchesFilter(metadata, filter map[string]string) bool {
	for key, want := range filter {
		if metadata[key] != want {
			return false
		}
	}
	return true
}

// cosine returns the cosine similarity of two equal-length vectors.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
