// Package chat runs an interactive conversation session against a remote
// agent, gating both user input and agent output through the moderation
// layer. History is held in memory for the lifetime of the session only.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fintalk-ai/agenthub/internal/agents"
	"github.com/fintalk-ai/agenthub/internal/moderation"
	"github.com/fintalk-ai/agenthub/internal/telemetry"
)

// AgentClient is the slice of the agents API a session needs.
type AgentClient interface {
	CreateThread(ctx context.Context) (*agents.Thread, error)
	CreateMessage(ctx context.Context, threadID, role, content string) (*agents.Message, error)
	CreateRun(ctx context.Context, threadID, agentID string) (*agents.Run, error)
	WaitRun(ctx context.Context, run *agents.Run) (*agents.Run, error)
	ListMessages(ctx context.Context, threadID string, limit int) ([]agents.Message, error)
}

// exitTokens end the session when typed on their own, case-insensitively.
var exitTokens = map[string]struct{}{
	"quit":  {},
	"exit":  {},
	"bye":   {},
	"salir": {},
	"adiós": {},
}

// IsExitToken reports whether the input ends the session.
func IsExitToken(input string) bool {
	_, ok := exitTokens[strings.ToLower(strings.TrimSpace(input))]
	return ok
}

// Exchange is one completed user/agent turn.
type Exchange struct {
	User      string
	Assistant string
	At        time.Time
}

// Session drives one conversation with a remote agent.
type Session struct {
	client     AgentClient
	gate       *moderation.Gate
	agentID    string
	agentName  string
	customerID string
	in         io.Reader
	out        io.Writer
	logger     *slog.Logger
	tracer     trace.Tracer
	sessionID  string

	history []Exchange
}

// Options configures a Session.
type Options struct {
	Client     AgentClient
	Gate       *moderation.Gate
	AgentID    string
	AgentName  string
	CustomerID string
	In         io.Reader
	Out        io.Writer
	Logger     *slog.Logger
}

// New creates a session. The gate may have moderation disabled but must
// not be nil.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		client:     opts.Client,
		gate:       opts.Gate,
		agentID:    opts.AgentID,
		agentName:  opts.AgentName,
		customerID: opts.CustomerID,
		in:         opts.In,
		out:        opts.Out,
		logger:     logger,
		tracer:     telemetry.Tracer("agenthub/chat"),
		sessionID:  uuid.NewString(),
	}
}

// History returns the exchanges completed so far.
func (s *Session) History() []Exchange {
	return s.history
}

// Run creates a thread and loops until an exit token, EOF, or context
// cancellation.
func (s *Session) Run(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "chat.session",
		trace.WithAttributes(
			attribute.String("session.id", s.sessionID),
			attribute.String("agent.id", s.agentID),
			attribute.String("agent.name", s.agentName),
		))
	defer span.End()

	thread, err := s.client.CreateThread(ctx)
	if err != nil {
		return fmt.Errorf("chat: create thread: %w", err)
	}
	span.SetAttributes(attribute.String("thread.id", thread.ID))
	s.logger.Info("chat session started",
		"session_id", s.sessionID, "agent_id", s.agentID, "thread_id", thread.ID)

	fmt.Fprintf(s.out, "Agent %q ready. Type 'salir' or 'quit' to end the conversation.\n\n", s.agentName)

	scanner := bufio.NewScanner(s.in)
	turn := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprint(s.out, "You: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("chat: read input: %w", err)
			}
			return nil
		}
		input := strings.TrimSpace(scanner.Text())

		if IsExitToken(input) {
			fmt.Fprintln(s.out, "Agent: Goodbye! Have a great day!")
			span.SetAttributes(attribute.Int("conversation.total_turns", turn))
			return nil
		}
		if input == "" {
			continue
		}

		turn++
		if err := s.exchange(ctx, thread.ID, input, turn); err != nil {
			return err
		}
		fmt.Fprintln(s.out)
	}
}

// exchange runs one moderated turn: gate input, post, run, fetch, gate output.
func (s *Session) exchange(ctx context.Context, threadID, input string, turn int) error {
	ctx, span := s.tracer.Start(ctx, "chat.exchange",
		trace.WithAttributes(
			attribute.Int("conversation.turn", turn),
			attribute.Int("user.input_length", len(input)),
		))
	defer span.End()

	verdict, err := s.gate.Check(ctx, input)
	if err != nil {
		s.logger.Warn("input moderation failed", "error", err)
	}
	s.printScores("Input Safety Analysis", verdict)
	if !verdict.Safe {
		span.SetAttributes(
			attribute.Bool("user.input_blocked", true),
			attribute.String("block_reason", verdict.Detail),
		)
		fmt.Fprintf(s.out, "Agent: I can't respond to that message. %s\n", verdict.Detail)
		return nil
	}

	content := fmt.Sprintf("[CONTEXT: customer_id=%s] %s", s.customerID, input)
	if _, err := s.client.CreateMessage(ctx, threadID, "user", content); err != nil {
		return fmt.Errorf("chat: create message: %w", err)
	}

	run, err := s.client.CreateRun(ctx, threadID, s.agentID)
	if err != nil {
		return fmt.Errorf("chat: create run: %w", err)
	}
	started := time.Now()
	run, err = s.client.WaitRun(ctx, run)
	if err != nil {
		return fmt.Errorf("chat: wait for run: %w", err)
	}
	span.SetAttributes(
		attribute.String("run.status", string(run.Status)),
		attribute.Float64("run.duration_seconds", time.Since(started).Seconds()),
	)
	if run.Status != agents.RunCompleted {
		s.logger.Warn("run did not complete", "run_id", run.ID, "status", run.Status)
		fmt.Fprintf(s.out, "Agent: Sorry, I couldn't process that (run %s).\n", run.Status)
		return nil
	}

	messages, err := s.client.ListMessages(ctx, threadID, 0)
	if err != nil {
		return fmt.Errorf("chat: list messages: %w", err)
	}
	reply := agents.AssistantReply(messages)
	if reply == "" {
		fmt.Fprintln(s.out, "Agent: (no response)")
		return nil
	}
	span.SetAttributes(attribute.Int("agent.response_length", len(reply)))

	replyVerdict, err := s.gate.Check(ctx, reply)
	if err != nil {
		s.logger.Warn("output moderation failed", "error", err)
	}
	if !replyVerdict.Safe {
		span.SetAttributes(
			attribute.Bool("agent.response_blocked", true),
			attribute.String("agent.block_reason", replyVerdict.Detail),
		)
		fmt.Fprintln(s.out, "Agent: I apologize, but I can't provide that response due to content policy.")
		s.printScores("Agent Response Safety Analysis", replyVerdict)
		return nil
	}

	fmt.Fprintf(s.out, "Agent: %s\n", reply)
	s.printScores("Agent Response Safety Analysis", replyVerdict)
	s.history = append(s.history, Exchange{User: input, Assistant: reply, At: time.Now()})
	return nil
}

// printScores renders the per-category severity table for one verdict.
// Nothing is printed when moderation is disabled.
func (s *Session) printScores(title string, result moderation.Result) {
	if result.Verdict == moderation.VerdictUnavailable || len(result.Scores) == 0 {
		return
	}
	fmt.Fprintf(s.out, "%s:\n", title)
	for _, score := range result.Scores {
		fmt.Fprintf(s.out, "   %s %s: severity %d\n", severityMarker(score.Severity), score.Category, score.Severity)
	}
}

func severityMarker(severity int) string {
	switch {
	case severity <= 1:
		return "[low]"
	case severity <= 3:
		return "[med]"
	default:
		return "[high]"
	}
}
