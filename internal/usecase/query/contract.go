package query

import (
	"context"

	"github.com/docuextract/docengine/internal/domain"
	"github.com/docuextract/docengine/internal/vectorstore"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher is one vector collection's read side.
type Searcher interface {
	Name() string
	Query(vector []float32, k int) ([]vectorstore.Hit, error)
}

// Generator produces the grounded answer text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// WebSearcher is the live web search fallback. Optional; a nil WebSearcher
// disables the fallback path.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]domain.WebResult, error)
}
