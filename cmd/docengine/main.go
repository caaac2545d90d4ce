package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/docuextract/docengine/internal/config"
	"github.com/docuextract/docengine/internal/db"
	dbRedis "github.com/docuextract/docengine/internal/db/redis"
	"github.com/docuextract/docengine/internal/domain"
	logpkg "github.com/docuextract/docengine/internal/logger"
	"github.com/docuextract/docengine/internal/metrics"
	"github.com/docuextract/docengine/internal/repository/embcache"
	chiTransport "github.com/docuextract/docengine/internal/transport/chi"
	"github.com/docuextract/docengine/internal/transport/docai"
	"github.com/docuextract/docengine/internal/transport/elevenlabs"
	"github.com/docuextract/docengine/internal/transport/gemini"
	openaiEmb "github.com/docuextract/docengine/internal/transport/openai"
	"github.com/docuextract/docengine/internal/transport/serpapi"
	"github.com/docuextract/docengine/internal/usecase/corpus"
	healthuc "github.com/docuextract/docengine/internal/usecase/health"
	ingestuc "github.com/docuextract/docengine/internal/usecase/ingest"
	queryuc "github.com/docuextract/docengine/internal/usecase/query"
	speechuc "github.com/docuextract/docengine/internal/usecase/speech"
	statsuc "github.com/docuextract/docengine/internal/usecase/stats"
	"github.com/docuextract/docengine/internal/vectorstore"
	"github.com/docuextract/docengine/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docengine API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Cache store not ready", zap.Error(err))
	}
	logger.Info("Connected to cache store")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterEngineMetrics()

	// Embedder chain: OpenAI -> Cached -> Instruction. Documents and queries
	// get different instruction prefixes against the same cache.
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	docEmbedder := buildEmbedder(base, store, cfg.Embedding.DocumentInstruction, logger)
	queryEmbedder := buildEmbedder(base, store, cfg.Embedding.QueryInstruction, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// The two independently locked vector collections.
	policyColl := vectorstore.New("policy", cfg.Embedding.Dimensions)
	userColl := vectorstore.New("user", cfg.Embedding.Dimensions)

	// Policy corpus load is startup-fatal: the engine must not answer
	// policy questions from an empty corpus.
	loader := corpus.New(asBatchEmbedder(docEmbedder), policyColl,
		cfg.Chunking.Size, cfg.Chunking.Overlap, logger)
	if err := loader.Load(ctx, cfg.Corpus.Path); err != nil {
		logger.Fatal("Failed to load policy corpus", zap.Error(err))
	}

	generator, err := gemini.NewGenerator(ctx, &gemini.Config{
		APIKey:  cfg.Generation.APIKey,
		Model:   cfg.Generation.Model,
		Timeout: time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Failed to create generator", zap.Error(err))
	}
	defer func() { _ = generator.Close() }()

	// Optional collaborators: each disabled by an empty key/endpoint.
	var extractor ingestuc.Extractor
	if cfg.Extractor.Endpoint != "" {
		extractor = docai.NewClient(&docai.Config{
			Endpoint: cfg.Extractor.Endpoint,
			APIKey:   cfg.Extractor.APIKey,
			Timeout:  time.Duration(cfg.Extractor.TimeoutSec) * time.Second,
			Logger:   logger,
		})
	}

	var web queryuc.WebSearcher
	if cfg.WebSearch.APIKey != "" {
		web = serpapi.NewClient(&serpapi.Config{
			APIKey:  cfg.WebSearch.APIKey,
			BaseURL: cfg.WebSearch.BaseURL,
			Results: cfg.WebSearch.Results,
			Timeout: time.Duration(cfg.WebSearch.TimeoutSec) * time.Second,
			Logger:  logger,
		})
	}

	var synth speechuc.Synthesizer
	if cfg.TTS.APIKey != "" {
		synth = elevenlabs.NewClient(&elevenlabs.Config{
			APIKey:       cfg.TTS.APIKey,
			BaseURL:      cfg.TTS.BaseURL,
			VoiceID:      cfg.TTS.VoiceID,
			Model:        cfg.TTS.Model,
			OutputFormat: cfg.TTS.OutputFormat,
			Timeout:      time.Duration(cfg.TTS.TimeoutSec) * time.Second,
			Logger:       logger,
		})
	}

	ingestSvc := ingestuc.New(extractor, asBatchEmbedder(docEmbedder), userColl,
		cfg.Chunking.Size, cfg.Chunking.Overlap)
	querySvc := queryuc.New(queryEmbedder, policyColl, userColl, generator, web, queryuc.Options{
		MaxResults:     cfg.Retrieval.MaxResults,
		ScoreThreshold: cfg.Retrieval.ScoreThreshold,
		SnippetChars:   cfg.Retrieval.SnippetChars,
		MaxQueryChars:  cfg.Retrieval.MaxQueryChars,
	})
	voiceConfig := cfg.TTS.VoiceID + "|" + cfg.TTS.Model + "|" + cfg.TTS.OutputFormat
	speechSvc := speechuc.New(synth, store, voiceConfig,
		time.Duration(cfg.TTS.CacheTTLHrs)*time.Hour)
	statsSvc := statsuc.New(policyColl, userColl)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(docEmbedder))

	server := chiTransport.NewServer(ingestSvc, querySvc, speechSvc, statsSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction.
func buildEmbedder(base *openaiEmb.Embedder, store db.Store, instruction string, logger *zap.Logger) domain.Embedder {
	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	}

	// Instruction prefix goes outermost so the cache key includes it
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}

// asBatchEmbedder exposes the chain's batch path, falling back to per-text
// embedding for decorators without native batch support.
func asBatchEmbedder(e domain.Embedder) domain.BatchEmbedder {
	if be, ok := e.(domain.BatchEmbedder); ok {
		return be
	}
	return batchFallbackEmbedder{inner: e}
}

type batchFallbackEmbedder struct {
	inner domain.Embedder
}

func (b batchFallbackEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, b.inner, texts)
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
