// Package facts implements the fact-lookup MCP server and its backing
// HTTP client.
//
// The server exposes a small set of read-only tools over a public facts
// API so that MCP-compatible agents can fetch random facts, browse
// categories, and search by keyword.
package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the public facts API used when no override is configured.
const DefaultBaseURL = "https://api.chucknorris.io/jokes"

// Fact is a single entry returned by the facts API.
type Fact struct {
	ID         string   `json:"id"`
	Value      string   `json:"value"`
	URL        string   `json:"url"`
	Categories []string `json:"categories"`
}

// Client talks to a chucknorris.io-compatible facts API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a facts API client. An empty baseURL selects
// DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Random returns one random fact.
func (c *Client) Random(ctx context.Context) (Fact, error) {
	var fact Fact
	if err := c.getJSON(ctx, "/random", nil, &fact); err != nil {
		return Fact{}, err
	}
	return fact, nil
}

// RandomByCategory returns one random fact from the given category.
func (c *Client) RandomByCategory(ctx context.Context, category string) (Fact, error) {
	var fact Fact
	params := url.Values{"category": {category}}
	if err := c.getJSON(ctx, "/random", params, &fact); err != nil {
		return Fact{}, err
	}
	return fact, nil
}

// Categories returns the list of available fact categories.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.getJSON(ctx, "/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// Search returns facts whose text matches the query.
func (c *Client) Search(ctx context.Context, query string) ([]Fact, error) {
	var out struct {
		Total  int    `json:"total"`
		Result []Fact `json:"result"`
	}
	params := url.Values{"query": {query}}
	if err := c.getJSON(ctx, "/search", params, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("facts api returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
