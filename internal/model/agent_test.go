package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintalk-ai/agenthub/internal/model"
)

func TestValidateAgentType(t *testing.T) {
	for _, typ := range []model.AgentType{
		model.TypeConversational,
		model.TypeSpecialist,
		model.TypeOrchestrator,
		model.TypeAssistant,
	} {
		require.NoError(t, model.ValidateAgentType(typ), "expected valid: %q", typ)
	}

	assert.Error(t, model.ValidateAgentType("chatbot"))
	assert.Error(t, model.ValidateAgentType(""))
}

func TestValidateToolKind(t *testing.T) {
	for _, kind := range []model.ToolKind{
		model.KindWebSearch,
		model.KindAPIIntegration,
		model.KindDatabaseQuery,
		model.KindCustomFunction,
	} {
		require.NoError(t, model.ValidateToolKind(kind), "expected valid: %q", kind)
	}

	assert.Error(t, model.ValidateToolKind("plugin"))
}

func TestValidateAgentName(t *testing.T) {
	valid := []string{
		"Mobilito",
		"billing assistant",
		"agente-v2",
		"Asesor Financiero",
		strings.Repeat("a", 128),
	}
	for _, name := range valid {
		require.NoError(t, model.ValidateAgentName(name), "expected valid: %q", name)
	}

	invalid := []string{
		"",
		strings.Repeat("a", 129),
		"line\nbreak",
		"tab\there",
	}
	for _, name := range invalid {
		assert.Error(t, model.ValidateAgentName(name), "expected invalid: %q", name)
	}
}

func TestDescriptorValidate(t *testing.T) {
	now := time.Now().UTC()
	desc := model.AgentDescriptor{
		ID:           "asst_abc123",
		Name:         "Mobilito",
		Type:         model.TypeConversational,
		Instructions: "You are a helpful banking assistant.",
		Tools: []model.ToolDescriptor{
			{Name: "facts", Kind: model.KindAPIIntegration, Endpoint: "http://localhost:8321"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, desc.Validate())

	missingID := desc
	missingID.ID = ""
	assert.Error(t, missingID.Validate())

	badType := desc
	badType.Type = "robot"
	assert.Error(t, badType.Validate())

	badTool := desc
	badTool.Tools = []model.ToolDescriptor{{Name: "x", Kind: "plugin"}}
	assert.Error(t, badTool.Validate())

	unnamedTool := desc
	unnamedTool.Tools = []model.ToolDescriptor{{Kind: model.KindWebSearch}}
	assert.Error(t, unnamedTool.Validate())
}
