package openai

import (
	"testing"

	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRequestIncludesSystemPromptAndMessages(t *testing.T) {
	req := llm.Request{
		Model:        "gpt-5",
		SystemPrompt: "be terse",
		Messages: []llm.Message{
			{Role: llm.RoleUser, ContentBlocks: []llm.ContentBlock{llm.TextBlock("hi")}},
		},
		ToolChoice: llm.ToolChoiceAuto,
	}

	wire := serializeRequest(req)
	require.Len(t, wire.Messages, 2)
	assert.Equal(t, "system", wire.Messages[0].Role)
	assert.Equal(t, "be terse", wire.Messages[0].Content)
	assert.Equal(t, "user", wire.Messages[1].Role)
	assert.Equal(t, "hi", wire.Messages[1].Content)
	assert.True(t, wire.Stream)
}

func TestSerializeRequestEmitsToolCallAndResultMessages(t *testing.T) {
	req := llm.Request{
		Model: "gpt-5",
		Messages: []llm.Message{
			{Role: llm.RoleAssistant, ContentBlocks: []llm.ContentBlock{
				llm.ToolCallBlock("call_1", "get_weather", `{"city":"nyc"}`, ""),
			}},
			{Role: llm.RoleTool, ContentBlocks: []llm.ContentBlock{
				llm.ToolResultBlock("call_1", "72F", false),
			}},
		},
	}

	wire := serializeRequest(req)
	require.Len(t, wire.Messages, 2)
	require.Len(t, wire.Messages[0].ToolCalls, 1)
	assert.Equal(t, "call_1", wire.Messages[0].ToolCalls[0].ID)
	assert.Equal(t, "get_weather", wire.Messages[0].ToolCalls[0].Function.Name)
	assert.Equal(t, "tool", wire.Messages[1].Role)
	assert.Equal(t, "call_1", wire.Messages[1].ToolCallID)
	assert.Equal(t, "72F", wire.Messages[1].Content)
}

func TestSerializeRequestDefaultsToolChoiceFromAvailableTools(t *testing.T) {
	req := llm.Request{
		Model: "gpt-5",
		Tools: []llm.ToolDef{{Name: "t", ParametersSchemaJSON: `{"type":"object"}`}},
	}
	wire := serializeRequest(req)
	assert.Equal(t, "auto", wire.ToolChoice)
}

func TestFinishReasonMapping(t *testing.T) {
	assert.Equal(t, finishReason("length"), finishReason("length"))
	assert.NotEqual(t, finishReason("length"), finishReason("stop"))
}

func TestOpenAIErrorCategoryMapsContextLengthExceededToInvalidArg(t *testing.T) {
	assert.Equal(t, ikerr.InvalidArg, openaiErrorCategory("invalid_request_error", "context_length_exceeded"))
	assert.Equal(t, ikerr.InvalidArg, openaiErrorCategory("context_length_exceeded", ""))
}

func TestOpenAIErrorCategoryMapsRateLimitExceeded(t *testing.T) {
	assert.Equal(t, ikerr.RateLimit, openaiErrorCategory("rate_limit_exceeded", ""))
}

func TestOpenAIErrorCategoryFallsBackToServer(t *testing.T) {
	assert.Equal(t, ikerr.Server, openaiErrorCategory("server_error", ""))
}
