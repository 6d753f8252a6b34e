package agents

import "time"

// Agent is the remote service's representation of an agent definition.
type Agent struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Model        string         `json:"model"`
	Instructions string         `json:"instructions"`
	Tools        []Tool         `json:"tools,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Tool is a tool attachment in the remote service's wire format.
type Tool struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Endpoint   string         `json:"endpoint,omitempty"`
}

// CreateAgentRequest is the body for creating an agent definition.
type CreateAgentRequest struct {
	Model        string         `json:"model"`
	Name         string         `json:"name"`
	Instructions string         `json:"instructions"`
	Tools        []Tool         `json:"tools,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// UpdateAgentRequest carries the mutable fields of an agent definition.
// Empty fields are omitted and left unchanged by the service.
type UpdateAgentRequest struct {
	Name         string `json:"name,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Tools        []Tool `json:"tools,omitempty"`
}

// DeleteAgentResponse confirms an agent deletion.
type DeleteAgentResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Thread is a conversation thread hosted by the remote service.
type Thread struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one turn in a thread. Content is a list of typed parts; only
// text parts are consumed here.
type Message struct {
	ID        string           `json:"id"`
	ThreadID  string           `json:"thread_id"`
	Role      string           `json:"role"`
	Content   []MessageContent `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
}

// MessageContent is one typed part of a message.
type MessageContent struct {
	Type string      `json:"type"`
	Text MessageText `json:"text"`
}

// MessageText is the text payload of a text content part.
type MessageText struct {
	Value string `json:"value"`
}

// RunStatus is the lifecycle state of an agent run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
)

// Terminal reports whether the run has finished, successfully or not.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunQueued, RunInProgress, RunRequiresAction:
		return false
	}
	return true
}

// Run is one execution of an agent against a thread.
type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	AgentID   string    `json:"agent_id"`
	Status    RunStatus `json:"status"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type listAgentsResponse struct {
	Data []Agent `json:"data"`
}

type listMessagesResponse struct {
	Data []Message `json:"data"`
}
