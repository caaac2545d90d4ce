package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/docuextract/docengine/internal/domain"
)

// Client performs live Google searches through the SerpAPI HTTP endpoint.
type Client struct {
	apiKey  string
	baseURL string
	results int
	http    *http.Client
	logger  *zap.Logger
}

// Config holds the web search settings.
type Config struct {
	APIKey  string
	BaseURL string
	Results int
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a SerpAPI search client.
func NewClient(cfg *Config) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		results: cfg.Results,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

type searchResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// Search returns organic result snippets for the query.
// Results with an empty snippet are dropped.
func (c *Client) Search(ctx context.Context, query string) ([]domain.WebResult, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	params.Set("num", strconv.Itoa(c.results))
	params.Set("hl", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request: %v: %w", err, domain.ErrWebSearchUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %v: %w", err, domain.ErrWebSearchUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search status %d: %s: %w",
			resp.StatusCode, truncateBody(body), domain.ErrWebSearchUnavailable)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %v: %w", err, domain.ErrWebSearchUnavailable)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("web search error: %s: %w", parsed.Error, domain.ErrWebSearchUnavailable)
	}

	results := make([]domain.WebResult, 0, len(parsed.OrganicResults))
	for _, r := range parsed.OrganicResults {
		if r.Snippet == "" {
			continue
		}
		results = append(results, domain.WebResult{
			Snippet: r.Snippet,
			URL:     r.Link,
			Title:   r.Title,
		})
		if len(results) == c.results {
			break
		}
	}

	return results, nil
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
