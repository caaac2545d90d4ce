package query

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docuextract/docengine/internal/domain"
	"github.com/docuextract/docengine/internal/logger"
	"github.com/docuextract/docengine/internal/metrics"
	"github.com/docuextract/docengine/internal/vectorstore"
)

const localPrompt = "You are a document knowledge assistant. Answer the user's question " +
	"strictly from the provided context. The context may include official policy " +
	"documents and user-uploaded documents. If the context does not support an " +
	"answer, say so instead of guessing.\n\nCONTEXT:\n%s\n\nQUESTION:\n%s"

const webPrompt = "You are a document knowledge assistant. Answer the user's question " +
	"using the web search results below. Provide accurate, up-to-date information " +
	"and cite sources briefly when helpful.\n\nWEB SEARCH RESULTS:\n%s\n\nQUESTION:\n%s"

// cannotAnswerText is the deterministic recovered-failure answer returned when
// generation fails or no evidence exists anywhere.
const cannotAnswerText = "I don't have enough information to answer this question right now. " +
	"Please try rephrasing or upload a relevant document."

// Options holds the retrieval tuning knobs.
type Options struct {
	MaxResults     int
	ScoreThreshold float64
	SnippetChars   int
	MaxQueryChars  int
}

// Service answers questions with retrieval-augmented generation over the two
// vector collections, falling back to live web search when local evidence is
// insufficient.
type Service struct {
	embedder   Embedder
	policyColl Searcher
	userColl   Searcher
	generator  Generator
	web        WebSearcher // optional
	opts       Options
}

// New creates a query service. web may be nil.
func New(embedder Embedder, policyColl, userColl Searcher, generator Generator, web WebSearcher, opts Options) *Service {
	return &Service{
		embedder:   embedder,
		policyColl: policyColl,
		userColl:   userColl,
		generator:  generator,
		web:        web,
		opts:       opts,
	}
}

// Answer runs the full query pipeline. maxResults <= 0 uses the configured
// default. Generation failure is recovered into a deterministic answer, not
// an error; only invalid input surfaces as an error.
func (s *Service) Answer(ctx context.Context, queryText string, maxResults int) (domain.Answer, error) {
	start := time.Now()

	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return domain.Answer{}, domain.ErrEmptyQuery
	}
	queryText = truncateRunes(queryText, s.opts.MaxQueryChars)

	if maxResults <= 0 {
		maxResults = s.opts.MaxResults
	}

	embRes, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("embed query: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(embRes.TotalTokens)

	hits, err := s.searchBoth(ctx, embRes.Embedding, maxResults)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("search collections: %w", err)
	}

	answer := s.respond(ctx, queryText, hits)

	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	return answer, nil
}

// searchBoth queries the two collections concurrently and merges the results
// by score descending, purely by score with no collection priority.
func (s *Service) searchBoth(ctx context.Context, vector []float32, k int) ([]vectorstore.Hit, error) {
	var policyHits, userHits []vectorstore.Hit

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		policyHits, err = s.policyColl.Query(vector, k)
		return err
	})
	g.Go(func() error {
		var err error
		userHits, err = s.userColl.Query(vector, k)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := append(policyHits, userHits...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// respond picks the local-evidence or web-fallback path based on the
// sufficiency threshold.
func (s *Service) respond(ctx context.Context, queryText string, hits []vectorstore.Hit) domain.Answer {
	if len(hits) > 0 && hits[0].Score >= s.opts.ScoreThreshold {
		return s.answerLocal(ctx, queryText, hits)
	}
	return s.answerWeb(ctx, queryText)
}

func (s *Service) answerLocal(ctx context.Context, queryText string, hits []vectorstore.Hit) domain.Answer {
	snippets := make([]string, len(hits))
	sources := make([]domain.Source, len(hits))
	for i, h := range hits {
		snippets[i] = truncateRunes(h.Text, s.opts.SnippetChars)
		sources[i] = hitSource(h)
	}

	prompt := fmt.Sprintf(localPrompt, strings.Join(snippets, "\n\n"), queryText)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logger.FromContext(ctx).Warn("Generation failed on local evidence", zap.Error(err))
		metrics.QueriesTotal.WithLabelValues("failed").Inc()
		return domain.Answer{
			Text:              cannotAnswerText,
			Sources:           sources,
			Snippets:          snippets,
			ContextSufficient: true,
		}
	}

	metrics.QueriesTotal.WithLabelValues("local").Inc()
	return domain.Answer{
		Text:              text,
		Sources:           sources,
		Snippets:          snippets,
		ContextSufficient: true,
	}
}

func (s *Service) answerWeb(ctx context.Context, queryText string) domain.Answer {
	if s.web == nil {
		metrics.QueriesTotal.WithLabelValues("failed").Inc()
		return domain.Answer{Text: cannotAnswerText}
	}

	results, err := s.web.Search(ctx, queryText)
	if err != nil || len(results) == 0 {
		if err != nil {
			logger.FromContext(ctx).Warn("Web search fallback failed", zap.Error(err))
		}
		metrics.QueriesTotal.WithLabelValues("failed").Inc()
		return domain.Answer{Text: cannotAnswerText}
	}

	snippets := make([]string, len(results))
	sources := make([]domain.Source, len(results))
	for i, r := range results {
		snippets[i] = truncateRunes(r.Snippet, s.opts.SnippetChars)
		sources[i] = domain.Source{
			Origin: domain.OriginWeb,
			Title:  r.Title,
			URL:    r.URL,
		}
	}

	prompt := fmt.Sprintf(webPrompt, strings.Join(snippets, "\n\n"), queryText)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logger.FromContext(ctx).Warn("Generation failed on web evidence", zap.Error(err))
		metrics.QueriesTotal.WithLabelValues("failed").Inc()
		return domain.Answer{Text: cannotAnswerText}
	}

	metrics.QueriesTotal.WithLabelValues("web").Inc()
	return domain.Answer{
		Text:          text,
		Sources:       sources,
		Snippets:      snippets,
		WebSearchUsed: true,
	}
}

// hitSource builds a citation from a hit's collection tag and metadata.
func hitSource(h vectorstore.Hit) domain.Source {
	src := domain.Source{
		Origin: domain.OriginPolicy,
		Score:  h.Score,
	}
	if h.Collection == "user" {
		src.Origin = domain.OriginUser
	}
	src.DocumentID = h.Metadata["document_id"]
	src.Title = h.Metadata["filename"]
	if src.Title == "" {
		src.Title = h.Metadata["source"]
	}
	if idx, err := strconv.Atoi(h.Metadata["chunk_index"]); err == nil {
		src.ChunkIndex = idx
	}
	if page, err := strconv.Atoi(h.Metadata["page"]); err == nil {
		src.Page = page
	}
	return src
}

// truncateRunes cuts s to at most max runes, at a rune boundary. max <= 0
// means no limit.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
