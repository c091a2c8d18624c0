package agent

import (
	"context"
	"testing"
	"time"

	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsA22CharUUID(t *testing.T) {
	a := New("anthropic", "claude-sonnet-4-5", llm.ThinkingMed, 4096)
	assert.Len(t, a.UUID, 22)
	assert.Equal(t, StateIdle, a.RunState)
}

func TestBeginWaitingForLLMActivatesSpinner(t *testing.T) {
	a := New("openai", "gpt-5", llm.ThinkingLow, 4096)
	a.BeginWaitingForLLM()
	assert.Equal(t, StateWaitingForLLM, a.RunState)
	assert.True(t, a.Spinner)
}

func TestCancelWaitingForLLMFlushesPartialTextAsAssistantMessage(t *testing.T) {
	a := New("openai", "gpt-5", llm.ThinkingLow, 4096)
	a.BeginWaitingForLLM()
	a.CancelWaitingForLLM("partial response")

	require.Equal(t, 1, a.MessageCount())
	assert.Equal(t, StateIdle, a.RunState)
	assert.False(t, a.Spinner)
}

func TestCancelWaitingForLLMWithNoPartialTextAppendsNothing(t *testing.T) {
	a := New("openai", "gpt-5", llm.ThinkingLow, 4096)
	a.CancelWaitingForLLM("")
	assert.Equal(t, 0, a.MessageCount())
}

func TestToolThreadHandoffAppendsCallAndResultThenTransitionsToWaitingForLLM(t *testing.T) {
	a := New("openai", "gpt-5", llm.ThinkingLow, 4096)
	a.BeginWaitingForLLM()

	done := make(chan struct{})
	a.BeginExecutingTool(context.Background(), "call_1", "get_weather", `{"city":"nyc"}`, func(ctx context.Context, name, argsJSON string) (string, bool) {
		defer close(done)
		return "72F", false
	})
	assert.Equal(t, StateExecutingTool, a.RunState)

	<-done
	// give the worker goroutine's lock release a moment to land
	deadline := time.After(time.Second)
	for {
		if a.PollToolThread() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("tool thread never completed")
		default:
		}
	}

	require.Equal(t, 2, a.MessageCount())
	msgs := a.Messages()
	assert.Equal(t, llm.BlockToolCall, msgs[0].ContentBlocks[0].Kind)
	assert.Equal(t, llm.BlockToolResult, msgs[1].ContentBlocks[0].Kind)
	assert.Equal(t, StateWaitingForLLM, a.RunState)
}

func TestExceededMaxToolTurns(t *testing.T) {
	a := New("openai", "gpt-5", llm.ThinkingLow, 4096)
	assert.False(t, a.ExceededMaxToolTurns(1))
	a.toolTurnsUsed = 1
	assert.True(t, a.ExceededMaxToolTurns(1))
}

func TestRewindTruncatesMessages(t *testing.T) {
	a := New("openai", "gpt-5", llm.ThinkingLow, 4096)
	a.AppendMessage(llm.Message{Role: llm.RoleUser, ContentBlocks: []llm.ContentBlock{llm.TextBlock("a")}})
	a.AppendMessage(llm.Message{Role: llm.RoleAssistant, ContentBlocks: []llm.ContentBlock{llm.TextBlock("b")}})

	err := a.Rewind(1)
	require.Nil(t, err)
	assert.Equal(t, 1, a.MessageCount())
}

func TestRewindRejectsOutOfRange(t *testing.T) {
	a := New("openai", "gpt-5", llm.ThinkingLow, 4096)
	err := a.Rewind(5)
	require.NotNil(t, err)
	assert.Equal(t, "out_of_range", string(err.Cat))
}

func TestForkInheritsProviderModelThinkingAndMessagePrefix(t *testing.T) {
	parent := New("anthropic", "claude-sonnet-4-5", llm.ThinkingMed, 4096)
	parent.AppendMessage(llm.Message{Role: llm.RoleUser, ContentBlocks: []llm.ContentBlock{llm.TextBlock("hi")}})

	child := parent.Fork(ForkOverrides{})
	assert.Equal(t, "anthropic", child.Provider)
	assert.Equal(t, "claude-sonnet-4-5", child.Model)
	assert.Equal(t, llm.ThinkingMed, child.Thinking)
	assert.Equal(t, parent.UUID, child.ParentUUID)
	assert.True(t, child.HasParent)
	assert.Equal(t, 1, child.ForkMessageID)
	assert.Equal(t, 1, child.MessageCount())
}

func TestForkWithCrossProviderModelOverrideInfersNewProvider(t *testing.T) {
	parent := New("anthropic", "claude-sonnet-4-5", llm.ThinkingMed, 4096)
	child := parent.Fork(ForkOverrides{Model: "gpt-5"})

	assert.Equal(t, "openai", child.Provider)
	assert.Equal(t, "gpt-5", child.Model)
	assert.Equal(t, llm.ThinkingMed, child.Thinking)
	assert.Equal(t, "anthropic", parent.Provider, "parent must be unchanged")
}

func TestForkDoesNotAliasParentMessageSlice(t *testing.T) {
	parent := New("openai", "gpt-5", llm.ThinkingLow, 4096)
	parent.AppendMessage(llm.Message{Role: llm.RoleUser, ContentBlocks: []llm.ContentBlock{llm.TextBlock("a")}})
	child := parent.Fork(ForkOverrides{})

	child.AppendMessage(llm.Message{Role: llm.RoleUser, ContentBlocks: []llm.ContentBlock{llm.TextBlock("b")}})
	assert.Equal(t, 1, parent.MessageCount())
	assert.Equal(t, 2, child.MessageCount())
}
