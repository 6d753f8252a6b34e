// Package cli implements the interactive menu that ties the agent catalog,
// the chat session, and the tool-server launcher together. All input and
// output goes through injected reader/writer so the loop is testable.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fintalk-ai/agenthub/internal/agents"
	"github.com/fintalk-ai/agenthub/internal/chat"
	"github.com/fintalk-ai/agenthub/internal/config"
	"github.com/fintalk-ai/agenthub/internal/launcher"
	"github.com/fintalk-ai/agenthub/internal/model"
	"github.com/fintalk-ai/agenthub/internal/moderation"
	"github.com/fintalk-ai/agenthub/internal/store"
)

// defaultInstructions seeds new agents when the operator doesn't provide any.
const defaultInstructions = "You are a friendly, professional conversational " +
	"assistant for banking and financial questions. Give helpful, accurate " +
	"answers and keep every interaction confidential."

// AgentService is the remote agent API surface the menu needs.
type AgentService interface {
	chat.AgentClient
	CreateAgent(ctx context.Context, req agents.CreateAgentRequest) (*agents.Agent, error)
	UpdateAgent(ctx context.Context, agentID string, req agents.UpdateAgentRequest) (*agents.Agent, error)
	DeleteAgent(ctx context.Context, agentID string) (*agents.DeleteAgentResponse, error)
}

// Controller runs the interactive menu.
type Controller struct {
	cfg      config.Config
	client   AgentService
	catalog  store.Store
	gate     *moderation.Gate
	launcher *launcher.Launcher
	in       *bufio.Scanner
	out      io.Writer
	logger   *slog.Logger
}

// Options wires a Controller.
type Options struct {
	Config   config.Config
	Client   AgentService
	Catalog  store.Store
	Gate     *moderation.Gate
	Launcher *launcher.Launcher
	In       io.Reader
	Out      io.Writer
	Logger   *slog.Logger
}

// New creates a Controller.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:      opts.Config,
		client:   opts.Client,
		catalog:  opts.Catalog,
		gate:     opts.Gate,
		launcher: opts.Launcher,
		in:       bufio.NewScanner(opts.In),
		out:      opts.Out,
		logger:   logger,
	}
}

// Run prints the banner, validates the environment, and loops on the main
// menu until the operator exits or input ends. A failed environment check
// returns before any menu is shown.
func (c *Controller) Run(ctx context.Context) error {
	c.banner()

	if err := c.cfg.Validate(); err != nil {
		var missing *config.MissingVarsError
		if errors.As(err, &missing) {
			fmt.Fprintln(c.out, "Missing environment variables:")
			for _, v := range missing.Vars {
				fmt.Fprintf(c.out, "   - %s\n", v)
			}
			fmt.Fprintln(c.out, "\nSet these variables in your .env file and try again.")
		}
		return fmt.Errorf("cli: environment validation: %w", err)
	}
	fmt.Fprintln(c.out, "Environment OK.")

	for {
		choice, err := c.choose(ctx, mainMenu(c.launcher.Running()), []string{"1", "2", "3", "4", "5"})
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			if err := c.manageAgents(ctx); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				c.logger.Error("agent management failed", "error", err)
				fmt.Fprintf(c.out, "Agent management failed: %v\n", err)
			}
		case "2":
			if err := c.startChat(ctx); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				c.logger.Error("chat session failed", "error", err)
				fmt.Fprintf(c.out, "Chat session failed: %v\n", err)
			}
		case "3":
			c.toggleToolServer()
		case "4":
			c.showStatus(ctx)
		case "5":
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}
	}
}

func (c *Controller) banner() {
	line := strings.Repeat("=", 60)
	fmt.Fprintln(c.out, line)
	fmt.Fprintln(c.out, "AGENTHUB — conversational agent console")
	fmt.Fprintln(c.out, line)
}

func mainMenu(toolServerUp bool) string {
	state := "stopped"
	if toolServerUp {
		state = "running"
	}
	return fmt.Sprintf(`MAIN MENU (tool server: %s)
1. Manage agents
2. Chat with an agent
3. Start/stop tool server
4. System status
5. Exit`, state)
}

// ---------------------------------------------------------------------------
// Agent management
// ---------------------------------------------------------------------------

func (c *Controller) manageAgents(ctx context.Context) error {
	descriptors, err := c.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("cli: list catalog: %w", err)
	}

	if len(descriptors) == 0 {
		fmt.Fprintln(c.out, "No agents in the catalog yet.")
		choice, err := c.choose(ctx, "1. Create first agent\n2. Back", []string{"1", "2"})
		if err != nil || choice == "2" {
			return err
		}
		return c.createAgent(ctx)
	}

	c.printCatalog(descriptors)
	choice, err := c.choose(ctx,
		"1. Use existing agents\n2. Create new agent\n3. Update agent\n4. Delete agent\n5. Back",
		[]string{"1", "2", "3", "4", "5"})
	if err != nil {
		return err
	}

	switch choice {
	case "1":
		fmt.Fprintln(c.out, "Continuing with existing agents.")
		return nil
	case "2":
		return c.createAgent(ctx)
	case "3":
		return c.updateAgent(ctx, descriptors)
	case "4":
		return c.deleteAgent(ctx, descriptors)
	default:
		return nil
	}
}

func (c *Controller) printCatalog(descriptors []model.AgentDescriptor) {
	fmt.Fprintf(c.out, "Agents in catalog (%d):\n", len(descriptors))
	for i, d := range descriptors {
		fmt.Fprintf(c.out, "   %d. %s (%s)\n", i+1, d.Name, d.Type)
		fmt.Fprintf(c.out, "      ID: %s\n", d.ID)
		fmt.Fprintf(c.out, "      Created: %s\n", d.CreatedAt.Format(time.RFC3339))
	}
}

func (c *Controller) createAgent(ctx context.Context) error {
	name, err := c.readLine(ctx, "Agent name (empty for \"Mobilito\"): ")
	if err != nil {
		return err
	}
	if name == "" {
		name = "Mobilito"
	}
	if err := model.ValidateAgentName(name); err != nil {
		fmt.Fprintf(c.out, "Invalid name: %v\n", err)
		return nil
	}

	instructions, err := c.readLine(ctx, "Instructions (empty for default): ")
	if err != nil {
		return err
	}
	if instructions == "" {
		instructions = defaultInstructions
	}

	created, err := c.client.CreateAgent(ctx, agents.CreateAgentRequest{
		Model:        c.cfg.ModelDeployment,
		Name:         name,
		Instructions: instructions,
	})
	if err != nil {
		return fmt.Errorf("cli: create agent: %w", err)
	}

	desc := model.AgentDescriptor{
		ID:           created.ID,
		Name:         created.Name,
		Type:         model.TypeConversational,
		Instructions: created.Instructions,
		CreatedAt:    created.CreatedAt,
		UpdatedAt:    created.UpdatedAt,
	}
	if desc.CreatedAt.IsZero() {
		desc.CreatedAt = time.Now().UTC()
		desc.UpdatedAt = desc.CreatedAt
	}
	if err := c.catalog.Put(ctx, desc); err != nil {
		return fmt.Errorf("cli: save descriptor: %w", err)
	}

	c.logger.Info("agent created", "agent_id", created.ID, "name", created.Name)
	fmt.Fprintf(c.out, "Agent %q created.\nID: %s\n", created.Name, created.ID)
	return nil
}

func (c *Controller) updateAgent(ctx context.Context, descriptors []model.AgentDescriptor) error {
	desc, err := c.selectAgent(ctx, descriptors, "Select the agent to update")
	if err != nil || desc == nil {
		return err
	}

	instructions, err := c.readLine(ctx, "New instructions (empty keeps current): ")
	if err != nil {
		return err
	}
	if instructions == "" {
		fmt.Fprintln(c.out, "Nothing to change.")
		return nil
	}

	updated, err := c.client.UpdateAgent(ctx, desc.ID, agents.UpdateAgentRequest{
		Instructions: instructions,
	})
	if err != nil {
		return fmt.Errorf("cli: update agent: %w", err)
	}

	desc.Instructions = updated.Instructions
	desc.UpdatedAt = time.Now().UTC()
	if err := c.catalog.Put(ctx, *desc); err != nil {
		return fmt.Errorf("cli: save descriptor: %w", err)
	}

	c.logger.Info("agent updated", "agent_id", desc.ID)
	fmt.Fprintf(c.out, "Agent %q updated.\n", desc.Name)
	return nil
}

func (c *Controller) deleteAgent(ctx context.Context, descriptors []model.AgentDescriptor) error {
	desc, err := c.selectAgent(ctx, descriptors, "Select the agent to delete")
	if err != nil || desc == nil {
		return err
	}

	confirm, err := c.choose(ctx,
		fmt.Sprintf("Delete %q?\n1. Yes, delete\n2. No, cancel", desc.Name),
		[]string{"1", "2"})
	if err != nil {
		return err
	}
	if confirm != "1" {
		fmt.Fprintln(c.out, "Cancelled.")
		return nil
	}

	if _, err := c.client.DeleteAgent(ctx, desc.ID); err != nil {
		return fmt.Errorf("cli: delete agent: %w", err)
	}
	if err := c.catalog.Delete(ctx, desc.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("cli: remove descriptor: %w", err)
	}

	c.logger.Info("agent deleted", "agent_id", desc.ID)
	fmt.Fprintln(c.out, "Agent deleted.")
	return nil
}

// selectAgent shows a numbered list and returns the chosen descriptor, or
// nil when the operator cancels with 0.
func (c *Controller) selectAgent(ctx context.Context, descriptors []model.AgentDescriptor, prompt string) (*model.AgentDescriptor, error) {
	fmt.Fprintf(c.out, "%s (0 to cancel):\n", prompt)
	valid := []string{"0"}
	for i, d := range descriptors {
		fmt.Fprintf(c.out, "%d. %s\n", i+1, d.Name)
		valid = append(valid, strconv.Itoa(i+1))
	}

	choice, err := c.choose(ctx, "", valid)
	if err != nil {
		return nil, err
	}
	if choice == "0" {
		fmt.Fprintln(c.out, "Cancelled.")
		return nil, nil
	}
	idx, _ := strconv.Atoi(choice)
	return &descriptors[idx-1], nil
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

func (c *Controller) startChat(ctx context.Context) error {
	descriptors, err := c.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("cli: list catalog: %w", err)
	}
	if len(descriptors) == 0 {
		fmt.Fprintln(c.out, "No agents available. Create one from the management menu first.")
		return nil
	}

	desc, err := c.selectAgent(ctx, descriptors, "Select an agent to chat with")
	if err != nil || desc == nil {
		return err
	}

	session := chat.New(chat.Options{
		Client:     c.client,
		Gate:       c.gate,
		AgentID:    desc.ID,
		AgentName:  desc.Name,
		CustomerID: c.cfg.CustomerID,
		In:         scannerReader{c.in},
		Out:        c.out,
		Logger:     c.logger,
	})
	return session.Run(ctx)
}

// scannerReader re-exposes the controller's scanner as a line-oriented
// reader so the chat session shares the same input stream.
type scannerReader struct {
	scanner *bufio.Scanner
}

func (r scannerReader) Read(p []byte) (int, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	line := r.scanner.Text() + "\n"
	return copy(p, line), nil
}

// ---------------------------------------------------------------------------
// Tool server
// ---------------------------------------------------------------------------

func (c *Controller) toggleToolServer() {
	if c.launcher.Running() {
		fmt.Fprintf(c.out, "Tool server is running (PID %d). Stopping...\n", c.launcher.PID())
		if err := c.launcher.Stop(); err != nil {
			fmt.Fprintf(c.out, "Failed to stop tool server: %v\n", err)
			return
		}
		fmt.Fprintln(c.out, "Tool server stopped.")
		return
	}

	fmt.Fprintln(c.out, "Starting tool server...")
	pid, err := c.launcher.Start()
	if err != nil {
		fmt.Fprintf(c.out, "Failed to start tool server: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Tool server started (PID %d).\n", pid)
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

func (c *Controller) showStatus(ctx context.Context) {
	fmt.Fprintln(c.out, "SYSTEM STATUS")

	if c.launcher.Running() {
		fmt.Fprintf(c.out, "   Tool server: running (PID %d)\n", c.launcher.PID())
	} else {
		fmt.Fprintln(c.out, "   Tool server: stopped")
	}

	descriptors, err := c.catalog.List(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "   Catalog: unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(c.out, "   Catalog: %d agent(s)\n", len(descriptors))
	}

	fmt.Fprintf(c.out, "   Agent endpoint: %s\n", presence(c.cfg.AgentEndpoint != ""))
	fmt.Fprintf(c.out, "   Model deployment: %s\n", presence(c.cfg.ModelDeployment != ""))
	fmt.Fprintf(c.out, "   Content safety: %s\n", presence(c.cfg.ContentSafetyEndpoint != ""))
	fmt.Fprintf(c.out, "   Moderation threshold: %d\n", c.gate.Threshold())
}

func presence(set bool) string {
	if set {
		return "configured"
	}
	return "not configured"
}

// ---------------------------------------------------------------------------
// Input helpers
// ---------------------------------------------------------------------------

// choose prompts until the operator enters one of the valid options.
// Input ending mid-prompt returns io.EOF.
func (c *Controller) choose(ctx context.Context, menu string, valid []string) (string, error) {
	for {
		if menu != "" {
			fmt.Fprintf(c.out, "\n%s\n", menu)
		}
		choice, err := c.readLine(ctx, "> ")
		if err != nil {
			return "", err
		}
		for _, v := range valid {
			if choice == v {
				return choice, nil
			}
		}
		fmt.Fprintf(c.out, "Invalid option. Valid choices: %s\n", strings.Join(valid, ", "))
	}
}

func (c *Controller) readLine(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	fmt.Fprint(c.out, prompt)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", fmt.Errorf("cli: read input: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}
