// Package agent implements the Conversation/Agent aggregate and its
// Idle/WaitingForLLM/ExecutingTool state machine (§3, §4.14), including
// fork semantics and the tool-worker handoff described in §5.
package agent

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ikigai-term/ikigai/internal/completion"
	"github.com/ikigai-term/ikigai/internal/history"
	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/layercake"
	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/ikigai-term/ikigai/internal/llm/provider"
	"github.com/ikigai-term/ikigai/internal/scrollback"
	"github.com/ikigai-term/ikigai/internal/textbuffer"
)

// RunState is the agent's position in the Idle/WaitingForLLM/ExecutingTool
// state machine (§3, §4.14).
type RunState int

const (
	StateIdle RunState = iota
	StateWaitingForLLM
	StateExecutingTool
)

// NewUUID returns a 22-character base64url identifier: the 16 raw bytes of
// a random (v4) UUID, unpadded — matching §3's agent uuid shape while
// still drawing the underlying randomness from a standard UUID generator.
func NewUUID() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// toolThreadResult is the single piece of state the worker thread and the
// event loop share, always guarded by ToolThreadMutex (§5).
type toolThreadResult struct {
	callID     string
	outputText string
	isError    bool
	err        *ikerr.Error
}

// Agent is the mutable bag described by §3: identity, provider binding,
// append-only messages, and every piece of owned UI state.
type Agent struct {
	UUID          string
	Name          string
	ParentUUID    string
	ForkMessageID int
	HasParent     bool
	CreatedAt     time.Time

	Provider      string
	Model         string
	Thinking      llm.ThinkingLevel
	SystemMessage string
	MaxTokens     int

	messages   []llm.Message
	Scrollback *scrollback.Scrollback
	Input      *textbuffer.Buffer
	LayerCake  layercake.State
	Viewport   int
	Completion *completion.Candidates
	History    *history.History
	Marks      map[string]int

	Spinner   bool
	RunState  RunState

	toolThreadMutex    sync.Mutex
	toolThreadRunning  bool
	toolThreadComplete bool
	toolThreadResult   toolThreadResult

	pendingToolCallID   string
	pendingToolCallName string
	pendingToolArgsJSON string
	toolTurnsUsed       int
}

// New constructs a fresh root agent ("agent zero" when this is the only
// agent in a session, per §4.16).
func New(providerName, model string, thinking llm.ThinkingLevel, maxTokens int) *Agent {
	return &Agent{
		UUID:       NewUUID(),
		CreatedAt:  time.Now(),
		Provider:   providerName,
		Model:      model,
		Thinking:   thinking,
		MaxTokens:  maxTokens,
		Scrollback: scrollback.New(),
		Input:      textbuffer.New(),
		History:    history.NewDefault(),
		Marks:      make(map[string]int),
		RunState:   StateIdle,
	}
}

// ConversationSource implementation (internal/llm.BuildFromConversation).
func (a *Agent) ModelName() string              { return a.Model }
func (a *Agent) SystemPrompt() string           { return a.SystemMessage }
func (a *Agent) Messages() []llm.Message        { return a.messages }
func (a *Agent) ThinkingLevel() llm.ThinkingLevel { return a.Thinking }
func (a *Agent) MaxOutputTokens() int           { return a.MaxTokens }

// AppendMessage appends to the conversation; messages are never mutated
// once attached (§3).
func (a *Agent) AppendMessage(m llm.Message) {
	a.messages = append(a.messages, m)
}

// MessageCount reports the number of appended messages.
func (a *Agent) MessageCount() int { return len(a.messages) }

// Rewind truncates the conversation to n messages (the `/rewind` command,
// §4.15).
func (a *Agent) Rewind(n int) *ikerr.Error {
	if n < 0 || n > len(a.messages) {
		return ikerr.New(ikerr.OutOfRange, "rewind target %d out of range [0,%d]", n, len(a.messages))
	}
	a.messages = a.messages[:n]
	return nil
}

// Mark records a named message index (`/mark <name>`).
func (a *Agent) Mark(name string) {
	a.Marks[name] = len(a.messages)
}

// BeginWaitingForLLM transitions Idle -> WaitingForLLM (§4.14): input
// becomes non-editable and the spinner activates.
func (a *Agent) BeginWaitingForLLM() {
	a.RunState = StateWaitingForLLM
	a.Spinner = true
}

// FinishToIdle transitions WaitingForLLM -> Idle on a clean finish.
func (a *Agent) FinishToIdle() {
	a.RunState = StateIdle
	a.Spinner = false
}

// CancelWaitingForLLM implements Ctrl+C during WaitingForLLM (§4.14, §5):
// flushes any partial streamed text as an Assistant message and returns to
// Idle.
func (a *Agent) CancelWaitingForLLM(partialText string) {
	if partialText != "" {
		a.AppendMessage(llm.Message{Role: llm.RoleAssistant, ContentBlocks: []llm.ContentBlock{llm.TextBlock(partialText)}})
	}
	a.FinishToIdle()
}

// BeginExecutingTool transitions WaitingForLLM -> ExecutingTool when a
// streamed response completes with a pending tool call, and spawns the
// worker goroutine. tool runs synchronously inside the goroutine; its
// result is handed back to the event loop only via CompleteToolThread under
// ToolThreadMutex lock, matching §5's cross-thread-ownership rule.
func (a *Agent) BeginExecutingTool(ctx context.Context, callID, name, argsJSON string, tool func(ctx context.Context, name, argsJSON string) (string, bool)) {
	a.RunState = StateExecutingTool
	a.pendingToolCallID = callID
	a.pendingToolCallName = name
	a.pendingToolArgsJSON = argsJSON

	a.toolThreadMutex.Lock()
	a.toolThreadRunning = true
	a.toolThreadComplete = false
	a.toolThreadMutex.Unlock()

	go func() {
		output, isErr := tool(ctx, name, argsJSON)

		a.toolThreadMutex.Lock()
		a.toolThreadResult = toolThreadResult{callID: callID, outputText: output, isError: isErr}
		a.toolThreadRunning = false
		a.toolThreadComplete = true
		a.toolThreadMutex.Unlock()
	}()
}

// PollToolThread is called once per event-loop iteration (§5 "the spinner
// tick provides a guaranteed wake"). It reports whether the worker
// finished and, if so, appends the tool_call/tool_result message pair and
// transitions ExecutingTool -> WaitingForLLM.
func (a *Agent) PollToolThread() (done bool) {
	a.toolThreadMutex.Lock()
	if !a.toolThreadComplete {
		a.toolThreadMutex.Unlock()
		return false
	}
	result := a.toolThreadResult
	a.toolThreadComplete = false
	a.toolThreadMutex.Unlock()

	a.AppendMessage(llm.Message{Role: llm.RoleAssistant, ContentBlocks: []llm.ContentBlock{
		llm.ToolCallBlock(result.callID, a.pendingToolCallName, a.pendingToolArgsJSON, ""),
	}})
	a.AppendMessage(llm.Message{Role: llm.RoleTool, ContentBlocks: []llm.ContentBlock{
		llm.ToolResultBlock(result.callID, result.outputText, result.isError),
	}})

	a.pendingToolCallID = ""
	a.pendingToolCallName = ""
	a.pendingToolArgsJSON = ""
	a.toolTurnsUsed++
	a.RunState = StateWaitingForLLM
	return true
}

// ExceededMaxToolTurns reports whether the per-turn tool-iteration bound
// from config has been exceeded (§4.14).
func (a *Agent) ExceededMaxToolTurns(maxToolTurns int) bool {
	return a.toolTurnsUsed >= maxToolTurns
}

// ResetToolTurns clears the per-turn tool iteration counter; called when a
// new user message starts a fresh turn.
func (a *Agent) ResetToolTurns() { a.toolTurnsUsed = 0 }

// ForkOverrides lets `/fork model=gpt-5 thinking=high` override the
// inherited provider binding on the child only (§4.14).
type ForkOverrides struct {
	Model    string
	Thinking llm.ThinkingLevel
}

// Fork creates a child agent inheriting provider, model, thinking level,
// and the parent's message prefix up to and including the current tail
// (§4.14, §8 example 7). Overrides on the fork command apply only to the
// child; a model override that names a different provider's model family
// re-infers the provider via provider.InferProvider.
func (a *Agent) Fork(overrides ForkOverrides) *Agent {
	child := New(a.Provider, a.Model, a.Thinking, a.MaxTokens)
	child.ParentUUID = a.UUID
	child.HasParent = true
	child.ForkMessageID = len(a.messages)
	child.SystemMessage = a.SystemMessage
	child.messages = append([]llm.Message{}, a.messages...)

	if overrides.Model != "" {
		child.Model = overrides.Model
		if inferred := provider.InferProvider(overrides.Model); inferred != "" {
			child.Provider = inferred
		}
	}
	if overrides.Thinking != "" {
		child.Thinking = overrides.Thinking
	}
	return child
}
