// Package agents provides the HTTP client for the hosted agent runtime:
// agent definitions, conversation threads, messages, and runs.
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the agent service.
	BaseURL string

	// APIKey is the secret exchanged for a bearer token. If empty, requests
	// are sent unauthenticated (local development against an emulator).
	APIKey string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with the configured Timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration

	// PollInterval is the delay between run status polls. Defaults to 1 second.
	PollInterval time.Duration
}

// Client is an HTTP client for the agent service.
// All methods are safe for concurrent use.
type Client struct {
	baseURL      string
	client       *http.Client
	tokenMgr     *tokenManager
	pollInterval time.Duration
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("agents: BaseURL is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = time.Second
	}

	c := &Client{
		baseURL:      baseURL,
		client:       httpClient,
		pollInterval: pollInterval,
	}
	if cfg.APIKey != "" {
		c.tokenMgr = newTokenManager(baseURL, cfg.APIKey, httpClient)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Agent definitions
// ---------------------------------------------------------------------------

// CreateAgent creates a new agent definition on the service.
func (c *Client) CreateAgent(ctx context.Context, req CreateAgentRequest) (*Agent, error) {
	var resp Agent
	if err := c.post(ctx, "/v1/agents", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAgent retrieves an agent definition by ID.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	var resp Agent
	if err := c.get(ctx, "/v1/agents/"+url.PathEscape(agentID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAgents lists agent definitions, newest first.
func (c *Client) ListAgents(ctx context.Context, limit int) ([]Agent, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "desc")

	var resp listAgentsResponse
	if err := c.get(ctx, "/v1/agents?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// UpdateAgent modifies an existing agent definition.
func (c *Client) UpdateAgent(ctx context.Context, agentID string, req UpdateAgentRequest) (*Agent, error) {
	var resp Agent
	if err := c.patch(ctx, "/v1/agents/"+url.PathEscape(agentID), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteAgent removes an agent definition from the service.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) (*DeleteAgentResponse, error) {
	var resp DeleteAgentResponse
	if err := c.doDelete(ctx, "/v1/agents/"+url.PathEscape(agentID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Threads, messages, and runs
// ---------------------------------------------------------------------------

// CreateThread starts a new conversation thread.
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var resp Thread
	if err := c.post(ctx, "/v1/threads", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, role, content string) (*Message, error) {
	body := map[string]string{"role": role, "content": content}
	var resp Message
	if err := c.post(ctx, "/v1/threads/"+url.PathEscape(threadID)+"/messages", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListMessages retrieves thread messages, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "desc")

	var resp listMessagesResponse
	if err := c.get(ctx, "/v1/threads/"+url.PathEscape(threadID)+"/messages?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CreateRun starts the agent against a thread.
func (c *Client) CreateRun(ctx context.Context, threadID, agentID string) (*Run, error) {
	body := map[string]string{"agent_id": agentID}
	var resp Run
	if err := c.post(ctx, "/v1/threads/"+url.PathEscape(threadID)+"/runs", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRun retrieves the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var resp Run
	if err := c.get(ctx, "/v1/threads/"+url.PathEscape(threadID)+"/runs/"+url.PathEscape(runID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WaitRun polls the run until it reaches a terminal status or the context is
// cancelled. There is no retry on transport errors — the first failure ends
// the wait.
func (c *Client) WaitRun(ctx context.Context, run *Run) (*Run, error) {
	for !run.Status.Terminal() {
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		next, err := c.GetRun(ctx, run.ThreadID, run.ID)
		if err != nil {
			return run, err
		}
		run = next
	}
	return run, nil
}

// AssistantReply returns the text of the newest assistant message, or empty
// if none exists. Messages are expected newest-first as ListMessages returns.
func AssistantReply(messages []Message) string {
	for _, msg := range messages {
		if msg.Role != "assistant" {
			continue
		}
		for _, part := range msg.Content {
			if part.Type == "text" {
				return part.Text.Value
			}
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("agents: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("agents: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(ctx, req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("agents: create request: %w", err)
	}

	return c.doRequest(ctx, req, dest)
}

func (c *Client) patch(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("agents: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("agents: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(ctx, req, dest)
}

func (c *Client) doDelete(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("agents: create request: %w", err)
	}

	return c.doRequest(ctx, req, dest)
}

func (c *Client) doRequest(ctx context.Context, req *http.Request, dest any) error {
	if c.tokenMgr != nil {
		token, err := c.tokenMgr.getToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("agents: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("agents: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return fmt.Errorf("agents: decode response: %w", err)
	}
	return nil
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
