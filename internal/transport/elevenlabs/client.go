package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/docuextract/docengine/internal/domain"
)

// Client synthesizes speech through the ElevenLabs text-to-speech API.
type Client struct {
	apiKey       string
	baseURL      string
	voiceID      string
	model        string
	outputFormat string
	http         *http.Client
	logger       *zap.Logger
}

// Config holds the speech synthesis settings.
type Config struct {
	APIKey       string
	BaseURL      string
	VoiceID      string
	Model        string
	OutputFormat string
	Timeout      time.Duration
	Logger       *zap.Logger
}

// NewClient creates an ElevenLabs synthesis client.
func NewClient(cfg *Config) *Client {
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		voiceID:      cfg.VoiceID,
		model:        cfg.Model,
		outputFormat: cfg.OutputFormat,
		http:         &http.Client{Timeout: cfg.Timeout},
		logger:       cfg.Logger,
	}
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize converts text to audio bytes in the configured output format.
// All errors are wrapped with domain.ErrSynthesisFailed for correct 502 mapping.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(synthesizeRequest{Text: text, ModelID: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		c.baseURL, url.PathEscape(c.voiceID), url.QueryEscape(c.outputFormat))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %v: %w", err, domain.ErrSynthesisFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synthesis status %d: %s: %w",
			resp.StatusCode, string(body), domain.ErrSynthesisFailed)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %v: %w", err, domain.ErrSynthesisFailed)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis returned empty audio: %w", domain.ErrSynthesisFailed)
	}

	return audio, nil
}

// ContentType reports the MIME type of synthesized audio.
func (c *Client) ContentType() string {
	return "audio/mpeg"
}
