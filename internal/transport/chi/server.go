package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/docuextract/docengine/internal/domain"
	healthuc "github.com/docuextract/docengine/internal/usecase/health"
	"github.com/docuextract/docengine/internal/usecase/ingest"
	queryuc "github.com/docuextract/docengine/internal/usecase/query"
	"github.com/docuextract/docengine/internal/usecase/speech"
	"github.com/docuextract/docengine/internal/usecase/stats"
)

// Error codes returned to clients.
const (
	codeBadRequest      = "bad_request"
	codeEmptyQuery      = "empty_query"
	codeEmptyDocument   = "empty_document"
	codeEmbeddingError  = "embedding_provider_error"
	codeGenerationError = "generation_failed"
	codeSearchDown      = "web_search_unavailable"
	codeSynthesisOff    = "synthesis_unavailable"
	codeSynthesisError  = "synthesis_failed"
	codeDimMismatch     = "vector_dim_mismatch"
	codeInternal        = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the engine over HTTP.
type Server struct {
	ingest        *ingest.Service
	query         *queryuc.Service
	speech        *speech.Service
	stats         *stats.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingestSvc *ingest.Service,
	querySvc *queryuc.Service,
	speechSvc *speech.Service,
	statsSvc *stats.Service,
	healthSvc *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingest: ingestSvc,
		query:  querySvc,
		speech: speechSvc,
		stats:  statsSvc,
		health: healthSvc,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, codeEmptyQuery),
		sentinelHandler(domain.ErrEmptyDocument, http.StatusBadRequest, codeEmptyDocument),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingError),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, codeGenerationError),
		sentinelHandler(domain.ErrSynthesisFailed, http.StatusBadGateway, codeSynthesisError),
		sentinelHandler(domain.ErrWebSearchUnavailable, http.StatusServiceUnavailable, codeSearchDown),
		sentinelHandler(domain.ErrSynthesisUnavailable, http.StatusServiceUnavailable, codeSynthesisOff),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusInternalServerError, codeDimMismatch),
	}
	return s
}

// Routes registers all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/documents", s.UploadDocument)
	r.Post("/v1/query", s.Query)
	r.Post("/v1/tts", s.Synthesize)
	r.Get("/v1/stats", s.Stats)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type uploadRequest struct {
	Filename string `json:"filename"`
	// Content is base64 in JSON, decoded automatically.
	Content   []byte `json:"content"`
	PageCount int    `json:"page_count,omitempty"`
}

// UploadDocument handles POST /v1/documents.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "filename is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	doc, err := s.ingest.Process(ctx, ingest.Upload{
		Filename:  req.Filename,
		Content:   req.Content,
		PageCount: req.PageCount,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeader(w, usage)
	writeJSON(w, http.StatusCreated, doc)
}

type queryRequest struct {
	Text       string `json:"text"`
	MaxResults int    `json:"max_results,omitempty"`
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	answer, err := s.query.Answer(ctx, req.Text, req.MaxResults)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeader(w, usage)
	writeJSON(w, http.StatusOK, answer)
}

type ttsRequest struct {
	Text string `json:"text"`
}

// Synthesize handles POST /v1/tts. Responds with raw audio bytes.
func (s *Server) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	audio, err := s.speech.Speak(r.Context(), req.Text)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", s.speech.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Report())
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeader(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		domain.ErrEmptyDocument,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrGenerationFailed,
		domain.ErrWebSearchUnavailable,
		domain.ErrSynthesisUnavailable,
		domain.ErrSynthesisFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
