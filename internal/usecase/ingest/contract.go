package ingest

import (
	"context"

	"github.com/docuextract/docengine/internal/domain"
	"github.com/docuextract/docengine/internal/vectorstore"
)

// Extractor runs structured extraction on raw document bytes.
// The primary extractor is optional; a nil Extractor routes every upload
// straight to the regex fallback.
type Extractor interface {
	Extract(ctx context.Context, content []byte, mimeType string) (domain.ExtractionResult, error)
}

// Embedder vectorizes chunk texts in a single call.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Collection stores embedded chunks for retrieval.
type Collection interface {
	Upsert(id string, vector []float32, text string, md vectorstore.Metadata) error
}
