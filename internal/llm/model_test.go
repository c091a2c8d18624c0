package llm

import (
	"testing"

	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConversation struct {
	model        string
	systemPrompt string
	messages     []Message
	thinking     ThinkingLevel
	maxTokens    int
}

func (f fakeConversation) ModelName() string         { return f.model }
func (f fakeConversation) SystemPrompt() string       { return f.systemPrompt }
func (f fakeConversation) Messages() []Message        { return f.messages }
func (f fakeConversation) ThinkingLevel() ThinkingLevel { return f.thinking }
func (f fakeConversation) MaxOutputTokens() int       { return f.maxTokens }

func TestBuildFromConversationRejectsEmptyModel(t *testing.T) {
	res := BuildFromConversation(fakeConversation{model: ""})
	_, err := res.Unwrap()
	require.NotNil(t, err)
	assert.Equal(t, ikerr.InvalidArg, err.Cat)
}

func TestBuildFromConversationCopiesFieldsAndDefaultsToolChoice(t *testing.T) {
	src := fakeConversation{
		model:        "claude-sonnet-4-5",
		systemPrompt: "be terse",
		messages: []Message{
			{Role: RoleUser, ContentBlocks: []ContentBlock{TextBlock("hi")}},
			{Role: RoleAssistant, ContentBlocks: []ContentBlock{TextBlock("hello")}},
		},
		thinking:  ThinkingMed,
		maxTokens: 4096,
	}

	req, err := BuildFromConversation(src).Unwrap()
	require.Nil(t, err)
	assert.Equal(t, "claude-sonnet-4-5", req.Model)
	assert.Equal(t, "be terse", req.SystemPrompt)
	assert.Equal(t, ThinkingMed, req.Thinking)
	assert.Equal(t, 4096, req.MaxOutputTokens)
	assert.Equal(t, ToolChoiceAuto, req.ToolChoice)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, RoleUser, req.Messages[0].Role)
	assert.Equal(t, RoleAssistant, req.Messages[1].Role)
}

func TestBuildFromConversationCopiesMessageSliceIndependently(t *testing.T) {
	msgs := []Message{{Role: RoleUser, ContentBlocks: []ContentBlock{TextBlock("a")}}}
	src := fakeConversation{model: "gpt-5", messages: msgs}

	req, err := BuildFromConversation(src).Unwrap()
	require.Nil(t, err)

	msgs[0] = Message{Role: RoleSystem}
	assert.Equal(t, RoleUser, req.Messages[0].Role, "request must not alias the source's slice")
}
