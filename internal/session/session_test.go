package session

import (
	"path/filepath"
	"testing"

	"github.com/ikigai-term/ikigai/internal/agent"
	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ikigai.db")
	store, err := Open(path)
	require.Nil(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnsureRootAgentInsertsOnce(t *testing.T) {
	store := openTestStore(t)
	a := agent.New("anthropic", "claude-sonnet-4-5", llm.ThinkingMed, 4096)
	a.Name = "agent zero"

	require.Nil(t, store.EnsureRootAgent(a))
	require.Nil(t, store.EnsureRootAgent(a))

	row, found, err := store.LoadAgent(a.UUID)
	require.Nil(t, err)
	require.True(t, found)
	assert.Equal(t, "agent zero", row.Name)
	assert.Equal(t, "anthropic", row.Provider)
	assert.False(t, row.HasFork)
}

func TestLoadAgentReturnsNotFoundForUnknownUUID(t *testing.T) {
	store := openTestStore(t)
	_, found, err := store.LoadAgent("does-not-exist")
	require.Nil(t, err)
	assert.False(t, found)
}

func TestInsertAgentPersistsForkLineage(t *testing.T) {
	store := openTestStore(t)
	parent := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	parent.AppendMessage(llm.Message{Role: llm.RoleUser, ContentBlocks: []llm.ContentBlock{llm.TextBlock("hi")}})
	require.Nil(t, store.InsertAgent(parent))

	child := parent.Fork(agent.ForkOverrides{Model: "gpt-5"})
	require.Nil(t, store.InsertAgent(child))

	row, found, err := store.LoadAgent(child.UUID)
	require.Nil(t, err)
	require.True(t, found)
	assert.True(t, row.HasFork)
	assert.Equal(t, parent.UUID, row.ParentUUID)
	assert.Equal(t, 1, row.ForkMessageID)
}

func TestAppendAndLoadMessagesPreservesOrder(t *testing.T) {
	store := openTestStore(t)
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	require.Nil(t, store.InsertAgent(a))

	require.Nil(t, store.AppendMessage("sess-1", a.UUID, 0, "user", "hello", ""))
	require.Nil(t, store.AppendMessage("sess-1", a.UUID, 1, "assistant", "hi there", ""))

	rows, err := store.LoadMessages(a.UUID)
	require.Nil(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "user", rows[0].Kind)
	assert.Equal(t, "hello", rows[0].Content)
	assert.Equal(t, "assistant", rows[1].Kind)
	assert.Equal(t, "hi there", rows[1].Content)
}

func TestMessageKindClassifiesToolBlocksOverRole(t *testing.T) {
	assert.Equal(t, "user", MessageKind(llm.RoleUser, llm.BlockText))
	assert.Equal(t, "assistant", MessageKind(llm.RoleAssistant, llm.BlockText))
	assert.Equal(t, "tool_call", MessageKind(llm.RoleAssistant, llm.BlockToolCall))
	assert.Equal(t, "tool_result", MessageKind(llm.RoleTool, llm.BlockToolResult))
}
