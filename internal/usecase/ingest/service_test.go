package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docuextract/docengine/internal/domain"
	"github.com/docuextract/docengine/internal/vectorstore"
)

type mockExtractor struct {
	result domain.ExtractionResult
	err    error
	calls  int
}

func (m *mockExtractor) Extract(_ context.Context, _ []byte, _ string) (domain.ExtractionResult, error) {
	m.calls++
	return m.result, m.err
}

type mockBatchEmbedder struct {
	dim   int
	calls int
	err   error
}

func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = make([]float32, m.dim)
		embeddings[i][0] = float32(i + 1)
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings, TotalTokens: len(texts)}, nil
}

type mockCollection struct {
	records map[string]string
}

func newMockCollection() *mockCollection {
	return &mockCollection{records: map[string]string{}}
}

func (m *mockCollection) Upsert(id string, _ []float32, text string, _ vectorstore.Metadata) error {
	m.records[id] = text
	return nil
}

func newTestService(extractor Extractor) (*Service, *mockCollection) {
	coll := newMockCollection()
	return New(extractor, &mockBatchEmbedder{dim: 4}, coll, 1000, 200), coll
}

func TestProcess_EmptyUpload(t *testing.T) {
	svc, _ := newTestService(nil)

	_, err := svc.Process(context.Background(), Upload{Filename: "empty.txt"})
	if !errors.Is(err, domain.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestProcess_SinglePageNotIndexed(t *testing.T) {
	svc, coll := newTestService(nil)

	doc, err := svc.Process(context.Background(), Upload{
		Filename: "form.txt",
		Content:  []byte("Name: John Doe"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Status != domain.StatusProcessed {
		t.Errorf("status = %q, want processed", doc.Status)
	}
	if doc.PageCount != 1 {
		t.Errorf("page count = %d, want 1", doc.PageCount)
	}
	if doc.IndexingState != domain.NotIndexed {
		t.Errorf("indexing state = %q, want not_indexed", doc.IndexingState)
	}
	if len(coll.records) != 0 {
		t.Errorf("single-page document indexed %d chunks, want 0", len(coll.records))
	}
}

func TestProcess_MultiPageIndexed(t *testing.T) {
	svc, coll := newTestService(nil)

	text := strings.Repeat("mortgage terms and conditions ", 100) // ~3000 chars
	doc, err := svc.Process(context.Background(), Upload{
		Filename:  "agreement.txt",
		Content:   []byte(text),
		PageCount: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.IndexingState != domain.Indexed {
		t.Fatalf("indexing state = %q, want indexed", doc.IndexingState)
	}

	wantChunks := len(domain.SplitText(text, 1000, 200))
	if doc.ChunkCount != wantChunks {
		t.Errorf("chunk count = %d, want %d", doc.ChunkCount, wantChunks)
	}
	if len(coll.records) != wantChunks {
		t.Errorf("collection has %d records, want %d", len(coll.records), wantChunks)
	}
}

func TestProcess_ReindexIsIdempotent(t *testing.T) {
	extractor := &mockExtractor{result: domain.ExtractionResult{
		Text:       strings.Repeat("policy clause ", 200),
		Confidence: 0.95,
		Method:     domain.MethodPrimary,
	}}
	coll := newMockCollection()
	svc := New(extractor, &mockBatchEmbedder{dim: 4}, coll, 1000, 200)

	doc := domain.Document{
		ID:         "doc-1",
		Filename:   "a.txt",
		PageCount:  2,
		Status:     domain.StatusProcessed,
		Extraction: extractor.result,
	}

	if _, err := svc.index(context.Background(), &doc); err != nil {
		t.Fatalf("first index: %v", err)
	}
	countAfterFirst := len(coll.records)

	// Same document ID produces the same chunk IDs: overwrite, not duplicate.
	if _, err := svc.index(context.Background(), &doc); err != nil {
		t.Fatalf("second index: %v", err)
	}
	if len(coll.records) != countAfterFirst {
		t.Errorf("re-index changed record count: %d -> %d", countAfterFirst, len(coll.records))
	}
}

func TestProcess_PrimaryFailureFallsBack(t *testing.T) {
	extractor := &mockExtractor{err: errors.New("extractor down")}
	svc, _ := newTestService(extractor)

	doc, err := svc.Process(context.Background(), Upload{
		Filename: "form.txt",
		Content:  []byte("Email: a@b.co"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if extractor.calls != 1 {
		t.Errorf("primary extractor calls = %d, want 1", extractor.calls)
	}
	if doc.Extraction.Method != domain.MethodFallback {
		t.Errorf("method = %q, want fallback", doc.Extraction.Method)
	}
	if doc.Status != domain.StatusProcessed {
		t.Errorf("status = %q, want processed", doc.Status)
	}
}

func TestProcess_PrimaryResultPreferred(t *testing.T) {
	extractor := &mockExtractor{result: domain.ExtractionResult{
		Text:       "structured text",
		Confidence: 0.97,
		Method:     domain.MethodPrimary,
	}}
	svc, _ := newTestService(extractor)

	doc, err := svc.Process(context.Background(), Upload{
		Filename: "form.pdf",
		Content:  []byte("Key: Value"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Extraction.Method != domain.MethodPrimary {
		t.Errorf("method = %q, want primary", doc.Extraction.Method)
	}
	if doc.Extraction.Confidence != 0.97 {
		t.Errorf("confidence = %g, want extractor's computed 0.97", doc.Extraction.Confidence)
	}
}

func TestProcess_BothStrategiesFail(t *testing.T) {
	extractor := &mockExtractor{err: errors.New("extractor down")}
	svc, coll := newTestService(extractor)

	doc, err := svc.Process(context.Background(), Upload{
		Filename:  "garbage.bin",
		Content:   []byte{0xff, 0xfe, 0xfd},
		PageCount: 5,
	})
	if err != nil {
		t.Fatalf("terminal failure must not surface as error, got %v", err)
	}

	if doc.Status != domain.StatusFailed {
		t.Errorf("status = %q, want failed", doc.Status)
	}
	if doc.FailureReason == "" {
		t.Error("failed document must carry a reason")
	}
	if len(coll.records) != 0 {
		t.Error("failed document must not be indexed")
	}
}

func TestProcess_EmbedFailureSurfaces(t *testing.T) {
	coll := newMockCollection()
	svc := New(nil, &mockBatchEmbedder{dim: 4, err: errors.New("api down")}, coll, 1000, 200)

	_, err := svc.Process(context.Background(), Upload{
		Filename:  "doc.txt",
		Content:   []byte(strings.Repeat("text ", 500)),
		PageCount: 2,
	})
	if err == nil {
		t.Fatal("expected embedding failure to surface")
	}
	if len(coll.records) != 0 {
		t.Error("no chunks must be stored when embedding fails")
	}
}
