package model

import (
	"fmt"
	"time"
)

// AgentType classifies what an agent definition is for.
type AgentType string

const (
	TypeConversational AgentType = "conversational"
	TypeSpecialist     AgentType = "specialist"
	TypeOrchestrator   AgentType = "orchestrator"
	TypeAssistant      AgentType = "assistant"
)

// ToolKind classifies a capability attachable to an agent.
type ToolKind string

const (
	KindWebSearch      ToolKind = "web-search"
	KindAPIIntegration ToolKind = "api-integration"
	KindDatabaseQuery  ToolKind = "database-query"
	KindCustomFunction ToolKind = "custom-function"
)

// AgentDescriptor is the local record of an agent hosted by the remote
// service. ID is the remote service's identifier and is unique within the
// catalog.
type AgentDescriptor struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Type         AgentType        `json:"type"`
	Instructions string           `json:"instructions"`
	Tools        []ToolDescriptor `json:"tools,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ToolDescriptor describes a capability owned by exactly one agent.
type ToolDescriptor struct {
	Name       string         `json:"name"`
	Kind       ToolKind       `json:"kind"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Endpoint   string         `json:"endpoint,omitempty"`
}

// ValidateAgentType checks that t is one of the known agent types.
func ValidateAgentType(t AgentType) error {
	switch t {
	case TypeConversational, TypeSpecialist, TypeOrchestrator, TypeAssistant:
		return nil
	}
	return fmt.Errorf("unknown agent type %q", t)
}

// ValidateToolKind checks that k is one of the known tool kinds.
func ValidateToolKind(k ToolKind) error {
	switch k {
	case KindWebSearch, KindAPIIntegration, KindDatabaseQuery, KindCustomFunction:
		return nil
	}
	return fmt.Errorf("unknown tool kind %q", k)
}

// ValidateAgentName checks that a display name is non-empty, at most 128
// characters, and contains no control characters.
func ValidateAgentName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("agent name is required")
	}
	if len(name) > 128 {
		return fmt.Errorf("agent name must be at most 128 characters")
	}
	for i, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("agent name contains control character at position %d", i)
		}
	}
	return nil
}

// Validate checks the descriptor and all of its tools.
func (d AgentDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	if err := ValidateAgentName(d.Name); err != nil {
		return err
	}
	if err := ValidateAgentType(d.Type); err != nil {
		return err
	}
	for _, tool := range d.Tools {
		if tool.Name == "" {
			return fmt.Errorf("tool name is required")
		}
		if err := ValidateToolKind(tool.Kind); err != nil {
			return fmt.Errorf("tool %q: %w", tool.Name, err)
		}
	}
	return nil
}
