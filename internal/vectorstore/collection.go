// Package vectorstore provides an in-process vector collection with
// brute-force cosine similarity search. Two independently locked instances
// back the engine: the policy corpus (read-mostly after startup) and the
// user document collection (written on every qualifying upload).
package vectorstore

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/docuextract/docengine/internal/domain"
)

// Metadata is the citation payload stored with each record.
type Metadata map[string]string

// Hit is a single nearest-neighbor result.
type Hit struct {
	ID         string
	Score      float64
	Text       string
	Metadata   Metadata
	Collection string
}

type record struct {
	vector   []float32
	text     string
	metadata Metadata
}

// Collection is an append-only store of (id, vector, text, metadata) records.
// Upsert is idempotent: re-indexing a chunk overwrites its record instead of
// duplicating it. Reads and writes are safe to run concurrently; a query
// racing an upsert may or may not see the new record but never a partial one.
type Collection struct {
	name string
	dim  int

	mu      sync.RWMutex
	records map[string]record
}

// New creates an empty collection with a fixed embedding dimension.
func New(name string, dim int) *Collection {
	return &Collection{
		name:    name,
		dim:     dim,
		records: make(map[string]record),
	}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Dimension returns the fixed embedding dimension.
func (c *Collection) Dimension() int { return c.dim }

// Upsert inserts or overwrites a record. The vector and metadata are copied
// so callers cannot mutate stored state afterwards.
func (c *Collection) Upsert(id string, vector []float32, text string, md Metadata) error {
	if len(vector) != c.dim {
		return fmt.Errorf("collection %s: got %d dims, want %d: %w",
			c.name, len(vector), c.dim, domain.ErrVectorDimMismatch)
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	meta := make(Metadata, len(md))
	for k, v := range md {
		meta[k] = v
	}

	c.mu.Lock()
	c.records[id] = record{vector: vec, text: text, metadata: meta}
	c.mu.Unlock()
	return nil
}

// Query returns the top-k records by cosine similarity to the given vector,
// sorted by score descending.
func (c *Collection) Query(vector []float32, k int) ([]Hit, error) {
	if len(vector) != c.dim {
		return nil, fmt.Errorf("collection %s: query has %d dims, want %d: %w",
			c.name, len(vector), c.dim, domain.ErrVectorDimMismatch)
	}
	if k <= 0 {
		return nil, nil
	}

	c.mu.RLock()
	hits := make([]Hit, 0, len(c.records))
	for id, rec := range c.records {
		hits = append(hits, Hit{
			ID:         id,
			Score:      cosineSimilarity(vector, rec.vector),
			Text:       rec.text,
			Metadata:   rec.metadata,
			Collection: c.name,
		})
	}
	c.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of stored records.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
