package google

import (
	"testing"

	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRequestMapsAssistantRoleToModel(t *testing.T) {
	req := llm.Request{
		Model: "gemini-2.5-pro",
		Messages: []llm.Message{
			{Role: llm.RoleUser, ContentBlocks: []llm.ContentBlock{llm.TextBlock("hi")}},
			{Role: llm.RoleAssistant, ContentBlocks: []llm.ContentBlock{llm.TextBlock("hello")}},
		},
	}
	wire, err := serializeRequest(req)
	require.Nil(t, err)
	require.Len(t, wire.Contents, 2)
	assert.Equal(t, "user", wire.Contents[0].Role)
	assert.Equal(t, "model", wire.Contents[1].Role)
}

func TestSerializeRequestAttachesThinkingBudgetForGemini25(t *testing.T) {
	req := llm.Request{Model: "gemini-2.5-pro", Thinking: llm.ThinkingLow}
	wire, err := serializeRequest(req)
	require.Nil(t, err)
	require.NotNil(t, wire.GenerationConfig.ThinkingConfig)
	require.NotNil(t, wire.GenerationConfig.ThinkingConfig.ThinkingBudget)
	assert.Equal(t, 8192, *wire.GenerationConfig.ThinkingConfig.ThinkingBudget)
	assert.Empty(t, wire.GenerationConfig.ThinkingConfig.ThinkingLevel)
}

func TestSerializeRequestAttachesThinkingLevelForGemini3(t *testing.T) {
	req := llm.Request{Model: "gemini-3-pro-preview", Thinking: llm.ThinkingMed}
	wire, err := serializeRequest(req)
	require.Nil(t, err)
	require.NotNil(t, wire.GenerationConfig.ThinkingConfig)
	assert.Equal(t, "high", wire.GenerationConfig.ThinkingConfig.ThinkingLevel)
	assert.Nil(t, wire.GenerationConfig.ThinkingConfig.ThinkingBudget)
}

func TestSerializeRequestOmitsThinkingConfigForNonThinkingModel(t *testing.T) {
	req := llm.Request{Model: "gemini-1.5-pro", Thinking: llm.ThinkingMin}
	wire, err := serializeRequest(req)
	require.Nil(t, err)
	assert.Nil(t, wire.GenerationConfig.ThinkingConfig)
}

func TestSerializeRequestRejectsNonMinThinkingForNonThinkingModel(t *testing.T) {
	req := llm.Request{Model: "gemini-1.5-pro", Thinking: llm.ThinkingHigh}
	_, err := serializeRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, ikerr.InvalidArg, err.Cat)
}

func TestSerializeRequestRejectsMinThinkingWhenModelCannotDisableThinking(t *testing.T) {
	req := llm.Request{Model: "gemini-2.5-pro", Thinking: llm.ThinkingMin}
	_, err := serializeRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, ikerr.InvalidArg, err.Cat)
}

func TestSerializeRequestAllowsMinThinkingWhenModelCanDisableThinking(t *testing.T) {
	req := llm.Request{Model: "gemini-2.5-flash", Thinking: llm.ThinkingMin}
	wire, err := serializeRequest(req)
	require.Nil(t, err)
	require.NotNil(t, wire.GenerationConfig.ThinkingConfig.ThinkingBudget)
	assert.Equal(t, 0, *wire.GenerationConfig.ThinkingConfig.ThinkingBudget)
}

func TestSerializeRequestRejectsUnknownGemini25Model(t *testing.T) {
	req := llm.Request{Model: "gemini-2.5-experimental", Thinking: llm.ThinkingHigh}
	_, err := serializeRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, ikerr.InvalidArg, err.Cat)
}

func TestSerializeRequestStripsAdditionalPropertiesFromToolSchema(t *testing.T) {
	req := llm.Request{
		Model: "gemini-2.5-pro",
		Tools: []llm.ToolDef{{Name: "t", ParametersSchemaJSON: `{"type":"object","additionalProperties":false}`}},
	}
	wire, err := serializeRequest(req)
	require.Nil(t, err)
	require.Len(t, wire.Tools, 1)
	require.Len(t, wire.Tools[0].FunctionDeclarations, 1)
	_, present := wire.Tools[0].FunctionDeclarations[0].Parameters["additionalProperties"]
	assert.False(t, present)
}

func TestGoogleErrorCategoryMapsResourceExhaustedToRateLimit(t *testing.T) {
	assert.Equal(t, "rate_limit", string(googleErrorCategory("RESOURCE_EXHAUSTED")))
}
