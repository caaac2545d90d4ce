// Package corpus loads the policy document corpus into the policy collection
// at startup. Load failure is fatal: the engine must not serve query traffic
// with an empty policy corpus it was configured to have.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/docuextract/docengine/internal/domain"
	"github.com/docuextract/docengine/internal/metrics"
	"github.com/docuextract/docengine/internal/pdftext"
	"github.com/docuextract/docengine/internal/vectorstore"
)

// Embedder vectorizes chunk texts in a single call per document.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Collection stores embedded policy chunks.
type Collection interface {
	Upsert(id string, vector []float32, text string, md vectorstore.Metadata) error
	Count() int
}

// Loader reads policy source files and populates the policy collection.
type Loader struct {
	embedder     Embedder
	policyColl   Collection
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
}

// New creates a corpus loader.
func New(embedder Embedder, policyColl Collection, chunkSize, chunkOverlap int, logger *zap.Logger) *Loader {
	return &Loader{
		embedder:     embedder,
		policyColl:   policyColl,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// Load walks dir recursively and indexes every PDF, text and markdown file.
// PDFs are split page by page so citations can name the page. A collection
// that already holds records is left untouched. A missing directory, an
// unreadable file, or an embedding failure aborts the load.
func (l *Loader) Load(ctx context.Context, dir string) error {
	if l.policyColl.Count() > 0 {
		l.logger.Info("Policy collection already populated, skipping corpus load",
			zap.Int("records", l.policyColl.Count()))
		return nil
	}

	var files, chunks int
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !supportedCorpusFile(entry.Name()) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		n, err := l.loadFile(ctx, path, name)
		if err != nil {
			return fmt.Errorf("load corpus file %s: %w", name, err)
		}
		files++
		chunks += n
		return nil
	})
	if err != nil {
		return fmt.Errorf("read corpus dir %s: %w", dir, err)
	}

	if files == 0 {
		return fmt.Errorf("corpus dir %s contains no loadable documents", dir)
	}

	metrics.ChunksIndexedTotal.WithLabelValues("policy").Add(float64(chunks))
	l.logger.Info("Policy corpus loaded",
		zap.String("dir", dir),
		zap.Int("files", files),
		zap.Int("chunks", chunks))

	return nil
}

// pageChunk ties a text chunk to the 1-based page it came from.
type pageChunk struct {
	domain.Chunk
	page int
}

func (l *Loader) loadFile(ctx context.Context, path, name string) (int, error) {
	pages, err := readDocumentPages(path)
	if err != nil {
		return 0, err
	}

	var splits []pageChunk
	for p, pageText := range pages {
		for _, ch := range domain.SplitText(pageText, l.chunkSize, l.chunkOverlap) {
			splits = append(splits, pageChunk{Chunk: ch, page: p + 1})
		}
	}
	if len(splits) == 0 {
		l.logger.Warn("Corpus file has no text, skipping", zap.String("file", name))
		return 0, nil
	}

	texts := make([]string, len(splits))
	for i, ch := range splits {
		texts[i] = ch.Text
	}

	res, err := l.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(splits), err)
	}

	for i, ch := range splits {
		id := name + ":" + strconv.Itoa(ch.page) + ":" + strconv.Itoa(ch.Index)
		md := vectorstore.Metadata{
			"source":      name,
			"page":        strconv.Itoa(ch.page),
			"chunk_index": strconv.Itoa(ch.Index),
		}
		if err := l.policyColl.Upsert(id, res.Embeddings[i], ch.Text, md); err != nil {
			return 0, fmt.Errorf("upsert page %d chunk %d: %w", ch.page, ch.Index, err)
		}
	}

	return len(splits), nil
}

// readDocumentPages returns the file's text page by page. Non-PDF files are
// a single page.
func readDocumentPages(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if pdftext.IsPDF(data) {
		return pdftext.Pages(data)
	}
	return []string{string(data)}, nil
}

func supportedCorpusFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}
