package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/docuextract/docengine/internal/domain"
)

// Generator produces answers with the Gemini API.
// A single shared instance serves the whole process; the underlying client
// is safe for concurrent use.
type Generator struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	name    string
	timeout time.Duration
	logger  *zap.Logger
}

// Config holds the generative model settings.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewGenerator creates a Gemini text generator.
func NewGenerator(ctx context.Context, cfg *Config) (*Generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Generator{
		client:  client,
		model:   client.GenerativeModel(cfg.Model),
		name:    cfg.Model,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}, nil
}

// Generate produces a text completion for the prompt.
// All errors are wrapped with domain.ErrGenerationFailed for correct 502 mapping.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate (%s): %v: %w", g.name, err, domain.ErrGenerationFailed)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates (%s): %w", g.name, domain.ErrGenerationFailed)
	}

	var content string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				content += string(text)
			}
		}
	}
	if content == "" {
		return "", fmt.Errorf("gemini returned empty content (%s): %w", g.name, domain.ErrGenerationFailed)
	}

	return content, nil
}

// Close releases the underlying API client.
func (g *Generator) Close() error {
	return g.client.Close()
}
