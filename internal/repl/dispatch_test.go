package repl

import (
	"testing"

	"github.com/ikigai-term/ikigai/internal/agent"
	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(text string) { f.messages = append(f.messages, text) }

func TestParseCommandRecognizesKnownCommand(t *testing.T) {
	cmd, ok := ParseCommand("/mark checkpoint-1")
	require.True(t, ok)
	assert.Equal(t, CmdMark, cmd.Name)
	assert.Equal(t, "checkpoint-1", cmd.Args)
}

func TestParseCommandRejectsUnknownCommand(t *testing.T) {
	_, ok := ParseCommand("/bogus")
	assert.False(t, ok)
}

func TestParseCommandRejectsPlainText(t *testing.T) {
	_, ok := ParseCommand("hello there")
	assert.False(t, ok)
}

func TestDispatchMarkRecordsMessageIndex(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	a.AppendMessage(llm.Message{Role: llm.RoleUser, ContentBlocks: []llm.ContentBlock{llm.TextBlock("hi")}})

	n := &fakeNotifier{}
	d := NewDispatcher(n)
	_, err := d.Dispatch(Command{Name: CmdMark, Args: "before-fork"}, a)
	require.Nil(t, err)
	assert.Equal(t, 1, a.Marks["before-fork"])
}

func TestDispatchMarkRejectsEmptyName(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	d := NewDispatcher(&fakeNotifier{})
	_, err := d.Dispatch(Command{Name: CmdMark, Args: ""}, a)
	require.NotNil(t, err)
	assert.Equal(t, "invalid_arg", string(err.Cat))
}

func TestDispatchForkCreatesChildWithOverrides(t *testing.T) {
	a := agent.New("anthropic", "claude-sonnet-4-5", llm.ThinkingMed, 4096)
	d := NewDispatcher(&fakeNotifier{})
	out, err := d.Dispatch(Command{Name: CmdFork, Args: "model=gpt-5 thinking=high"}, a)
	require.Nil(t, err)
	require.NotNil(t, out.NewActiveAgent)
	assert.Equal(t, "openai", out.NewActiveAgent.Provider)
	assert.Equal(t, "gpt-5", out.NewActiveAgent.Model)
	assert.Equal(t, llm.ThinkingHigh, out.NewActiveAgent.Thinking)
}

func TestDispatchForkRejectsMalformedArgument(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	d := NewDispatcher(&fakeNotifier{})
	_, err := d.Dispatch(Command{Name: CmdFork, Args: "model"}, a)
	require.NotNil(t, err)
	assert.Equal(t, "invalid_arg", string(err.Cat))
}

func TestDispatchModelWithNoArgsReportsCurrent(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	n := &fakeNotifier{}
	d := NewDispatcher(n)
	_, err := d.Dispatch(Command{Name: CmdModel, Args: ""}, a)
	require.Nil(t, err)
	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "gpt-5")
}

func TestDispatchModelSwitchesModelAndInfersProvider(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	d := NewDispatcher(&fakeNotifier{})
	_, err := d.Dispatch(Command{Name: CmdModel, Args: "claude-sonnet-4-5"}, a)
	require.Nil(t, err)
	assert.Equal(t, "anthropic", a.Provider)
	assert.Equal(t, "claude-sonnet-4-5", a.Model)
}

func TestDispatchRewindWithNoArgDropsLastMessage(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	a.AppendMessage(llm.Message{Role: llm.RoleUser, ContentBlocks: []llm.ContentBlock{llm.TextBlock("a")}})
	a.AppendMessage(llm.Message{Role: llm.RoleAssistant, ContentBlocks: []llm.ContentBlock{llm.TextBlock("b")}})

	d := NewDispatcher(&fakeNotifier{})
	_, err := d.Dispatch(Command{Name: CmdRewind, Args: ""}, a)
	require.Nil(t, err)
	assert.Equal(t, 1, a.MessageCount())
}

func TestDispatchRewindWithExplicitN(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	a.AppendMessage(llm.Message{Role: llm.RoleUser, ContentBlocks: []llm.ContentBlock{llm.TextBlock("a")}})
	a.AppendMessage(llm.Message{Role: llm.RoleAssistant, ContentBlocks: []llm.ContentBlock{llm.TextBlock("b")}})

	d := NewDispatcher(&fakeNotifier{})
	_, err := d.Dispatch(Command{Name: CmdRewind, Args: "0"}, a)
	require.Nil(t, err)
	assert.Equal(t, 0, a.MessageCount())
}

func TestDispatchRewindRejectsNonInteger(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	d := NewDispatcher(&fakeNotifier{})
	_, err := d.Dispatch(Command{Name: CmdRewind, Args: "abc"}, a)
	require.NotNil(t, err)
	assert.Equal(t, "invalid_arg", string(err.Cat))
}

func TestDispatchDebugTogglesOnByDefault(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	d := NewDispatcher(&fakeNotifier{})
	out, err := d.Dispatch(Command{Name: CmdDebug, Args: ""}, a)
	require.Nil(t, err)
	require.NotNil(t, out.DebugEnabled)
	assert.True(t, *out.DebugEnabled)
}

func TestDispatchDebugOffDisables(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	d := NewDispatcher(&fakeNotifier{})
	out, err := d.Dispatch(Command{Name: CmdDebug, Args: "off"}, a)
	require.Nil(t, err)
	require.NotNil(t, out.DebugEnabled)
	assert.False(t, *out.DebugEnabled)
}

func TestDispatchSystemUpdatesSystemMessage(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	d := NewDispatcher(&fakeNotifier{})
	_, err := d.Dispatch(Command{Name: CmdSystem, Args: "You are concise."}, a)
	require.Nil(t, err)
	assert.Equal(t, "You are concise.", a.SystemMessage)
}

func TestDispatchMailCommandsAreNoOpsWithNotice(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	n := &fakeNotifier{}
	d := NewDispatcher(n)
	for _, name := range []CommandName{CmdCheckMail, CmdReadMail, CmdDeleteMail} {
		_, err := d.Dispatch(Command{Name: name}, a)
		require.Nil(t, err)
	}
	assert.Len(t, n.messages, 3)
}

func TestDispatchKillAndSendSetOutcomeFlags(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	d := NewDispatcher(&fakeNotifier{})

	out, err := d.Dispatch(Command{Name: CmdKill}, a)
	require.Nil(t, err)
	assert.True(t, out.KillRequested)

	out, err = d.Dispatch(Command{Name: CmdSend}, a)
	require.Nil(t, err)
	assert.True(t, out.SendRequested)
}

func TestDispatchClearSetsOutcomeFlag(t *testing.T) {
	a := agent.New("openai", "gpt-5", llm.ThinkingLow, 4096)
	d := NewDispatcher(&fakeNotifier{})
	out, err := d.Dispatch(Command{Name: CmdClear}, a)
	require.Nil(t, err)
	assert.True(t, out.ClearRequested)
}
