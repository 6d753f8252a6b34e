// Package moderation classifies text against a hosted content-safety service
// and gates what is shown to the user.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Category names returned by the classifier. Severity is on a 0-7 scale.
const (
	CategoryHate     = "Hate"
	CategoryViolence = "Violence"
	CategorySexual   = "Sexual"
	CategorySelfHarm = "SelfHarm"
)

// Categories lists the fixed set the classifier scores, in display order.
var Categories = []string{CategoryHate, CategoryViolence, CategorySexual, CategorySelfHarm}

// CategoryScore is the classifier's severity for one category.
type CategoryScore struct {
	Category string `json:"category"`
	Severity int    `json:"severity"`
}

// Analyzer submits text for classification. Implemented by Client and by
// test fakes.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string) ([]CategoryScore, error)
}

// Client is an HTTP client for the content-safety service.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// ClientConfig holds the settings needed to construct a Client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient creates a content-safety client. Returns an error if BaseURL is empty.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("moderation: BaseURL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  httpClient,
	}, nil
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	CategoriesAnalysis []CategoryScore `json:"categoriesAnalysis"`
}

type analyzeErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnalyzeText submits text and returns per-category severities. A score is
// returned for every known category; missing categories default to zero.
func (c *Client) AnalyzeText(ctx context.Context, text string) ([]CategoryScore, error) {
	encoded, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("moderation: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text:analyze", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("moderation: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moderation: analyze request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("moderation: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope analyzeErrorEnvelope
		if jsonErr := json.Unmarshal(bodyBytes, &envelope); jsonErr == nil && envelope.Error.Message != "" {
			return nil, fmt.Errorf("moderation: %s (%d): %s", envelope.Error.Code, resp.StatusCode, envelope.Error.Message)
		}
		return nil, fmt.Errorf("moderation: analyze failed with status %d", resp.StatusCode)
	}

	var ar analyzeResponse
	if err := json.Unmarshal(bodyBytes, &ar); err != nil {
		return nil, fmt.Errorf("moderation: decode response: %w", err)
	}

	return normalizeScores(ar.CategoriesAnalysis), nil
}

// normalizeScores returns one score per known category in display order,
// filling in zeros for categories the service omitted.
func normalizeScores(scores []CategoryScore) []CategoryScore {
	byName := make(map[string]int, len(scores))
	for _, s := range scores {
		byName[s.Category] = s.Severity
	}
	out := make([]CategoryScore, 0, len(Categories))
	for _, cat := range Categories {
		out = append(out, CategoryScore{Category: cat, Severity: byName[cat]})
	}
	return out
}
