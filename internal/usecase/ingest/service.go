package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuextract/docengine/internal/domain"
	"github.com/docuextract/docengine/internal/logger"
	"github.com/docuextract/docengine/internal/metrics"
	"github.com/docuextract/docengine/internal/pdftext"
	"github.com/docuextract/docengine/internal/vectorstore"
)

// Upload is one incoming file to process. PageCount may be declared by the
// ingress; zero means detect from the bytes.
type Upload struct {
	Filename  string
	Content   []byte
	PageCount int
}

// Service routes uploads through extraction and, for multi-page documents,
// chunks and indexes the extracted text into the user collection.
type Service struct {
	extractor    Extractor // optional; nil routes everything to the fallback
	embedder     Embedder
	userColl     Collection
	chunkSize    int
	chunkOverlap int
}

// New creates an ingest service. extractor may be nil.
func New(extractor Extractor, embedder Embedder, userColl Collection, chunkSize, chunkOverlap int) *Service {
	return &Service{
		extractor:    extractor,
		embedder:     embedder,
		userColl:     userColl,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Process extracts structured data from the upload and indexes multi-page
// documents. Extraction failure of both strategies produces a terminal
// failed document, not an error; only empty input and indexing failures
// surface as errors.
func (s *Service) Process(ctx context.Context, up Upload) (domain.Document, error) {
	if len(up.Content) == 0 {
		return domain.Document{}, fmt.Errorf("upload %q: %w", up.Filename, domain.ErrEmptyDocument)
	}

	doc := domain.Document{
		ID:            uuid.NewString(),
		Filename:      up.Filename,
		PageCount:     pageCount(ctx, up),
		IndexingState: domain.NotIndexed,
		UploadedAt:    time.Now().UTC(),
	}

	extraction, ok := s.extract(ctx, up)
	if !ok {
		doc.Status = domain.StatusFailed
		doc.FailureReason = "no readable text: primary and fallback extraction both failed"
		metrics.ExtractionsTotal.WithLabelValues("fallback", "failed").Inc()
		logger.FromContext(ctx).Warn("Extraction failed",
			zap.String("document_id", doc.ID),
			zap.String("filename", up.Filename))
		return doc, nil
	}

	doc.Status = domain.StatusProcessed
	doc.Extraction = extraction
	metrics.ExtractionsTotal.WithLabelValues(string(extraction.Method), "success").Inc()

	if doc.PageCount <= 1 {
		return doc, nil
	}

	indexed, err := s.index(ctx, &doc)
	if err != nil {
		return domain.Document{}, fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	if indexed {
		doc.IndexingState = domain.Indexed
	}

	return doc, nil
}

// extract runs the two-strategy chain: primary extractor first when
// configured, regex fallback otherwise or on primary failure.
func (s *Service) extract(ctx context.Context, up Upload) (domain.ExtractionResult, bool) {
	if s.extractor != nil {
		result, err := s.extractor.Extract(ctx, up.Content, mimeType(up))
		if err == nil && strings.TrimSpace(result.Text) != "" {
			return result, true
		}
		if err != nil {
			logger.FromContext(ctx).Warn("Primary extraction failed, using fallback",
				zap.String("filename", up.Filename),
				zap.Error(err))
		}
	}

	if pdftext.IsPDF(up.Content) {
		if text, err := pdftext.Text(up.Content); err == nil && strings.TrimSpace(text) != "" {
			result, ok := fallbackExtract([]byte(text))
			return result, ok
		}
	}

	return fallbackExtract(up.Content)
}

// index chunks the extracted text, embeds all chunks in one batch, and
// upserts them in chunk order. Chunk IDs are {docID}:{index}, so re-indexing
// the same document overwrites rather than duplicates.
func (s *Service) index(ctx context.Context, doc *domain.Document) (bool, error) {
	chunks := domain.SplitText(doc.Extraction.Text, s.chunkSize, s.chunkOverlap)
	if len(chunks) == 0 {
		return false, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	res, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return false, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	for i, ch := range chunks {
		id := doc.ID + ":" + strconv.Itoa(ch.Index)
		md := vectorstore.Metadata{
			"document_id": doc.ID,
			"filename":    doc.Filename,
			"chunk_index": strconv.Itoa(ch.Index),
		}
		if err := s.userColl.Upsert(id, res.Embeddings[i], ch.Text, md); err != nil {
			return false, fmt.Errorf("upsert chunk %d: %w", ch.Index, err)
		}
	}

	doc.ChunkCount = len(chunks)
	metrics.DocumentsIndexedTotal.Inc()
	metrics.ChunksIndexedTotal.WithLabelValues("user").Add(float64(len(chunks)))

	logger.FromContext(ctx).Info("Document indexed",
		zap.String("document_id", doc.ID),
		zap.Int("pages", doc.PageCount),
		zap.Int("chunks", len(chunks)))

	return true, nil
}

// pageCount prefers the ingress-declared count, then inspects the bytes for
// a PDF page tree; everything else counts as a single page.
func pageCount(ctx context.Context, up Upload) int {
	if up.PageCount > 0 {
		return up.PageCount
	}
	if !pdftext.IsPDF(up.Content) {
		return 1
	}
	n, err := pdftext.PageCount(up.Content)
	if err != nil || n < 1 {
		logger.FromContext(ctx).Warn("Failed to count PDF pages",
			zap.String("filename", up.Filename),
			zap.Error(err))
		return 1
	}
	return n
}

func mimeType(up Upload) string {
	if pdftext.IsPDF(up.Content) {
		return "application/pdf"
	}
	if strings.HasSuffix(strings.ToLower(up.Filename), ".txt") {
		return "text/plain"
	}
	return "application/octet-stream"
}
