package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintalk-ai/agenthub/internal/agents"
	"github.com/fintalk-ai/agenthub/internal/cli"
	"github.com/fintalk-ai/agenthub/internal/config"
	"github.com/fintalk-ai/agenthub/internal/launcher"
	"github.com/fintalk-ai/agenthub/internal/model"
	"github.com/fintalk-ai/agenthub/internal/moderation"
	"github.com/fintalk-ai/agenthub/internal/store"
)

// fakeService is an in-memory stand-in for the remote agent API.
type fakeService struct {
	created chan struct{}
	nextID  int
	deleted []string
	updated []string
	reply   string
}

func newFakeService() *fakeService {
	return &fakeService{reply: "hello there"}
}

func (f *fakeService) CreateAgent(ctx context.Context, req agents.CreateAgentRequest) (*agents.Agent, error) {
	f.nextID++
	return &agents.Agent{
		ID:           fmt.Sprintf("agent-%d", f.nextID),
		Name:         req.Name,
		Model:        req.Model,
		Instructions: req.Instructions,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

func (f *fakeService) UpdateAgent(ctx context.Context, agentID string, req agents.UpdateAgentRequest) (*agents.Agent, error) {
	f.updated = append(f.updated, agentID)
	return &agents.Agent{ID: agentID, Instructions: req.Instructions}, nil
}

func (f *fakeService) DeleteAgent(ctx context.Context, agentID string) (*agents.DeleteAgentResponse, error) {
	f.deleted = append(f.deleted, agentID)
	return &agents.DeleteAgentResponse{ID: agentID, Deleted: true}, nil
}

func (f *fakeService) CreateThread(ctx context.Context) (*agents.Thread, error) {
	return &agents.Thread{ID: "thread-1"}, nil
}

func (f *fakeService) CreateMessage(ctx context.Context, threadID, role, content string) (*agents.Message, error) {
	return &agents.Message{ID: "msg-1", ThreadID: threadID, Role: role}, nil
}

func (f *fakeService) CreateRun(ctx context.Context, threadID, agentID string) (*agents.Run, error) {
	return &agents.Run{ID: "run-1", ThreadID: threadID, AgentID: agentID, Status: agents.RunQueued}, nil
}

func (f *fakeService) WaitRun(ctx context.Context, run *agents.Run) (*agents.Run, error) {
	done := *run
	done.Status = agents.RunCompleted
	return &done, nil
}

func (f *fakeService) ListMessages(ctx context.Context, threadID string, limit int) ([]agents.Message, error) {
	return []agents.Message{
		{
			ID:   "msg-2",
			Role: "assistant",
			Content: []agents.MessageContent{
				{Type: "text", Text: agents.MessageText{Value: f.reply}},
			},
		},
	}, nil
}

func validConfig() config.Config {
	return config.Config{
		AgentEndpoint:   "https://agents.example.test",
		ModelDeployment: "gpt-test",
		CustomerID:      "88129215",
		RelayBatchSize:  1,
	}
}

func newController(t *testing.T, cfg config.Config, svc *fakeService, catalog store.Store, input string) (*cli.Controller, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	ctrl := cli.New(cli.Options{
		Config:   cfg,
		Client:   svc,
		Catalog:  catalog,
		Gate:     moderation.NewGate(nil, moderation.DefaultThreshold, false),
		Launcher: launcher.New("/nonexistent/factsd", nil, slog.New(slog.DiscardHandler)),
		In:       strings.NewReader(input),
		Out:      out,
		Logger:   slog.New(slog.DiscardHandler),
	})
	return ctrl, out
}

func TestRunFailsBeforeMenuWhenEnvMissing(t *testing.T) {
	cfg := config.Config{RelayBatchSize: 1} // no endpoint, no deployment
	ctrl, out := newController(t, cfg, newFakeService(), store.NewMemoryStore(), "5\n")

	err := ctrl.Run(context.Background())
	require.Error(t, err)

	var missing *config.MissingVarsError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{"AGENTHUB_ENDPOINT", "MODEL_DEPLOYMENT"}, missing.Vars)
	assert.Contains(t, out.String(), "AGENTHUB_ENDPOINT")
	assert.NotContains(t, out.String(), "MAIN MENU", "menu must not be shown when the environment is invalid")
}

func TestRunExit(t *testing.T) {
	ctrl, out := newController(t, validConfig(), newFakeService(), store.NewMemoryStore(), "5\n")

	require.NoError(t, ctrl.Run(context.Background()))
	assert.Contains(t, out.String(), "MAIN MENU")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestRunInvalidOptionReprompts(t *testing.T) {
	ctrl, out := newController(t, validConfig(), newFakeService(), store.NewMemoryStore(), "9\n5\n")

	require.NoError(t, ctrl.Run(context.Background()))
	assert.Contains(t, out.String(), "Invalid option")
}

func TestCreateAgentFlow(t *testing.T) {
	svc := newFakeService()
	catalog := store.NewMemoryStore()

	// 1 = manage agents, 1 = create first agent, name, instructions, 5 = exit.
	input := "1\n1\nTestBot\nbe helpful\n5\n"
	ctrl, out := newController(t, validConfig(), svc, catalog, input)

	require.NoError(t, ctrl.Run(context.Background()))
	assert.Contains(t, out.String(), `Agent "TestBot" created.`)

	descriptors, err := catalog.List(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "TestBot", descriptors[0].Name)
	assert.Equal(t, "be helpful", descriptors[0].Instructions)
	assert.Equal(t, model.TypeConversational, descriptors[0].Type)
}

func TestDeleteAgentWithConfirm(t *testing.T) {
	svc := newFakeService()
	catalog := store.NewMemoryStore()
	seed := model.AgentDescriptor{
		ID:        "agent-7",
		Name:      "OldBot",
		Type:      model.TypeConversational,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, catalog.Put(context.Background(), seed))

	// 1 = manage, 4 = delete, 1 = first agent, 1 = confirm, 5 = exit.
	input := "1\n4\n1\n1\n5\n"
	ctrl, out := newController(t, validConfig(), svc, catalog, input)

	require.NoError(t, ctrl.Run(context.Background()))
	assert.Contains(t, out.String(), "Agent deleted.")
	assert.Equal(t, []string{"agent-7"}, svc.deleted)

	_, err := catalog.Get(context.Background(), "agent-7")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteAgentCancelled(t *testing.T) {
	svc := newFakeService()
	catalog := store.NewMemoryStore()
	require.NoError(t, catalog.Put(context.Background(), model.AgentDescriptor{
		ID:        "agent-7",
		Name:      "OldBot",
		Type:      model.TypeConversational,
		CreatedAt: time.Now().UTC(),
	}))

	// 1 = manage, 4 = delete, 1 = first agent, 2 = cancel, 5 = exit.
	input := "1\n4\n1\n2\n5\n"
	ctrl, _ := newController(t, validConfig(), svc, catalog, input)

	require.NoError(t, ctrl.Run(context.Background()))
	assert.Empty(t, svc.deleted)

	_, err := catalog.Get(context.Background(), "agent-7")
	assert.NoError(t, err)
}

func TestChatThroughMenu(t *testing.T) {
	svc := newFakeService()
	catalog := store.NewMemoryStore()
	require.NoError(t, catalog.Put(context.Background(), model.AgentDescriptor{
		ID:        "agent-1",
		Name:      "Chatty",
		Type:      model.TypeConversational,
		CreatedAt: time.Now().UTC(),
	}))

	// 2 = chat, 1 = first agent, one message, quit, 5 = exit.
	input := "2\n1\nhi there\nquit\n5\n"
	ctrl, out := newController(t, validConfig(), svc, catalog, input)

	require.NoError(t, ctrl.Run(context.Background()))
	assert.Contains(t, out.String(), "Agent: hello there")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestStatusView(t *testing.T) {
	catalog := store.NewMemoryStore()
	require.NoError(t, catalog.Put(context.Background(), model.AgentDescriptor{
		ID:        "agent-1",
		Name:      "Chatty",
		Type:      model.TypeConversational,
		CreatedAt: time.Now().UTC(),
	}))

	// 4 = status, 5 = exit.
	ctrl, out := newController(t, validConfig(), newFakeService(), catalog, "4\n5\n")

	require.NoError(t, ctrl.Run(context.Background()))
	s := out.String()
	assert.Contains(t, s, "Tool server: stopped")
	assert.Contains(t, s, "Catalog: 1 agent(s)")
	assert.Contains(t, s, "Agent endpoint: configured")
	assert.Contains(t, s, "Content safety: not configured")
}
