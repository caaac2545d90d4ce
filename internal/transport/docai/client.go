package docai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/docuextract/docengine/internal/domain"
)

// Client calls a Document-AI-style structured extraction service.
// The service accepts raw document bytes and returns text with key-value
// pairs, entities and tables.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *zap.Logger
}

// Config holds the structured extractor settings.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewClient creates an extraction service client.
func NewClient(cfg *Config) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   cfg.Logger,
	}
}

type extractResponse struct {
	Text          string `json:"text"`
	KeyValuePairs []struct {
		Key        string  `json:"key"`
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"key_value_pairs"`
	Entities []struct {
		Type        string  `json:"type"`
		MentionText string  `json:"mention_text"`
		Confidence  float64 `json:"confidence"`
	} `json:"entities"`
	Tables []struct {
		Rows [][]string `json:"rows"`
	} `json:"tables"`
	Confidence float64 `json:"confidence"`
}

// Extract runs structured extraction on the document bytes.
func (c *Client) Extract(ctx context.Context, content []byte, mimeType string) (domain.ExtractionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(content))
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("build extract request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("extract request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ExtractionResult{}, fmt.Errorf("extract status %d: %s", resp.StatusCode, string(body))
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("parse extract response: %w", err)
	}

	result := domain.ExtractionResult{
		Text:       parsed.Text,
		Confidence: parsed.Confidence,
		Method:     domain.MethodPrimary,
	}
	for _, kv := range parsed.KeyValuePairs {
		result.KeyValuePairs = append(result.KeyValuePairs, domain.KeyValue{
			Key:        kv.Key,
			Value:      kv.Value,
			Confidence: kv.Confidence,
		})
	}
	for _, e := range parsed.Entities {
		result.Entities = append(result.Entities, domain.Entity{
			Type:        e.Type,
			MentionText: e.MentionText,
			Confidence:  e.Confidence,
		})
	}
	for _, t := range parsed.Tables {
		result.Tables = append(result.Tables, domain.Table{Rows: t.Rows})
	}

	return result, nil
}
