package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// mockServer creates an httptest server that mimics the agent service API.
func mockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	// Always register the token endpoint.
	if _, ok := handlers["POST /v1/token"]; !ok {
		mux.HandleFunc("POST /v1/token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token": "test-token-xyz",
				"expires_at":   time.Now().Add(1 * time.Hour).Format(time.RFC3339),
			})
		})
	}

	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}

	return httptest.NewServer(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:      serverURL,
		APIKey:       "test-key",
		Timeout:      5 * time.Second,
		PollInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestCreateAgentSendsBearerToken(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/agents": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer test-token-xyz" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"error": map[string]any{"code": "unauthorized", "message": "bad token"},
				})
				return
			}
			var req CreateAgentRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			writeJSON(w, http.StatusOK, Agent{
				ID:           "asst_001",
				Name:         req.Name,
				Model:        req.Model,
				Instructions: req.Instructions,
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	agent, err := client.CreateAgent(context.Background(), CreateAgentRequest{
		Model:        "gpt-4o",
		Name:         "Mobilito",
		Instructions: "Be helpful.",
	})
	if err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	if agent.ID != "asst_001" || agent.Name != "Mobilito" {
		t.Fatalf("unexpected agent: %+v", agent)
	}
}

func TestTokenRefreshAfterExpiry(t *testing.T) {
	var authCount, listCount atomic.Int32

	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/token": func(w http.ResponseWriter, r *http.Request) {
			n := authCount.Add(1)
			token := "token-v1"
			if n > 1 {
				token = "token-v2"
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token": token,
				// Short expiry to force refresh.
				"expires_at": time.Now().Add(1 * time.Second).Format(time.RFC3339),
			})
		},
		"GET /v1/agents": func(w http.ResponseWriter, r *http.Request) {
			listCount.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{"data": []Agent{}})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	if _, err := client.ListAgents(context.Background(), 5); err != nil {
		t.Fatalf("first list failed: %v", err)
	}
	if authCount.Load() != 1 {
		t.Errorf("expected 1 auth call, got %d", authCount.Load())
	}

	time.Sleep(1100 * time.Millisecond)

	if _, err := client.ListAgents(context.Background(), 5); err != nil {
		t.Fatalf("second list failed: %v", err)
	}
	if authCount.Load() != 2 {
		t.Errorf("expected 2 auth calls after expiry, got %d", authCount.Load())
	}
	if listCount.Load() != 2 {
		t.Errorf("expected 2 list calls, got %d", listCount.Load())
	}
}

func TestErrorTypesMapCorrectly(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"not found", http.StatusNotFound, IsNotFound},
		{"unauthorized", http.StatusUnauthorized, IsUnauthorized},
		{"rate limited", http.StatusTooManyRequests, IsRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := mockServer(t, map[string]http.HandlerFunc{
				"GET /v1/agents/{id}": func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, tt.status, map[string]any{
						"error": map[string]any{"code": "err", "message": "nope"},
					})
				},
			})
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			_, err := client.GetAgent(context.Background(), "asst_missing")
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Fatalf("error predicate did not match: %v", err)
			}
		})
	}
}

func TestWaitRunPollsUntilTerminal(t *testing.T) {
	var polls atomic.Int32

	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/threads/{tid}/runs/{rid}": func(w http.ResponseWriter, r *http.Request) {
			status := RunInProgress
			if polls.Add(1) >= 3 {
				status = RunCompleted
			}
			writeJSON(w, http.StatusOK, Run{
				ID:       r.PathValue("rid"),
				ThreadID: r.PathValue("tid"),
				Status:   status,
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	run, err := client.WaitRun(context.Background(), &Run{
		ID:       "run_1",
		ThreadID: "thread_1",
		Status:   RunQueued,
	})
	if err != nil {
		t.Fatalf("WaitRun failed: %v", err)
	}
	if run.Status != RunCompleted {
		t.Fatalf("expected completed, got %s", run.Status)
	}
	if polls.Load() < 3 {
		t.Fatalf("expected at least 3 polls, got %d", polls.Load())
	}
}

func TestWaitRunHonorsContext(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/threads/{tid}/runs/{rid}": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, Run{ID: "run_1", ThreadID: "thread_1", Status: RunInProgress})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.WaitRun(ctx, &Run{ID: "run_1", ThreadID: "thread_1", Status: RunQueued})
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestAssistantReply(t *testing.T) {
	messages := []Message{
		{Role: "assistant", Content: []MessageContent{{Type: "text", Text: MessageText{Value: "newest reply"}}}},
		{Role: "user", Content: []MessageContent{{Type: "text", Text: MessageText{Value: "question"}}}},
		{Role: "assistant", Content: []MessageContent{{Type: "text", Text: MessageText{Value: "older reply"}}}},
	}
	if got := AssistantReply(messages); got != "newest reply" {
		t.Fatalf("expected newest assistant text, got %q", got)
	}

	if got := AssistantReply([]Message{{Role: "user"}}); got != "" {
		t.Fatalf("expected empty reply, got %q", got)
	}
}
