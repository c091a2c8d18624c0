// Package llm holds the canonical, provider-agnostic request/message data
// model (§3) and the request builder (§4.10) that every provider adapter
// serializes from.
package llm

import "github.com/ikigai-term/ikigai/internal/ikerr"

// Role is a message's speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolChoice constrains whether/how the model may call tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// ThinkingLevel is the abstract reasoning-effort dial (§3, GLOSSARY).
type ThinkingLevel string

const (
	ThinkingMin ThinkingLevel = "min"
	ThinkingLow ThinkingLevel = "low"
	ThinkingMed ThinkingLevel = "med"
	ThinkingHigh ThinkingLevel = "high"
)

// ContentBlockKind discriminates the ContentBlock union.
type ContentBlockKind int

const (
	BlockText ContentBlockKind = iota
	BlockToolCall
	BlockToolResult
)

// ContentBlock is one immutable unit of a Message's content (§3). Only the
// fields relevant to Kind are populated.
type ContentBlock struct {
	Kind ContentBlockKind

	// BlockText
	Text string

	// BlockToolCall
	ToolCallID      string
	ToolName        string
	ArgumentsJSON   string
	ThoughtSignature string // opaque, Gemini 3 only

	// BlockToolResult
	ToolResultCallID string
	OutputText       string
	IsError          bool
}

// TextBlock constructs a Text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockText, Text: text}
}

// ToolCallBlock constructs a ToolCall content block.
func ToolCallBlock(id, name, argumentsJSON, thoughtSignature string) ContentBlock {
	return ContentBlock{
		Kind:             BlockToolCall,
		ToolCallID:       id,
		ToolName:         name,
		ArgumentsJSON:    argumentsJSON,
		ThoughtSignature: thoughtSignature,
	}
}

// ToolResultBlock constructs a ToolResult content block.
func ToolResultBlock(toolCallID, outputText string, isError bool) ContentBlock {
	return ContentBlock{
		Kind:             BlockToolResult,
		ToolResultCallID: toolCallID,
		OutputText:       outputText,
		IsError:          isError,
	}
}

// Message is one append-only turn in a conversation (§3). Historical
// messages are never mutated, only appended.
type Message struct {
	Role          Role
	ContentBlocks []ContentBlock
}

// ToolDef describes one tool available to the model (§3).
type ToolDef struct {
	Name                string
	Description         string
	ParametersSchemaJSON string
}

// Request is the canonical, provider-agnostic request (§3) every adapter
// serializes into its own wire shape.
type Request struct {
	Model            string
	SystemPrompt     string
	Messages         []Message
	Tools            []ToolDef
	ToolChoice       ToolChoice
	MaxOutputTokens  int
	Thinking         ThinkingLevel
}

// ConversationSource is the minimal view of an Agent (§3) the request
// builder needs, kept narrow so internal/llm has no dependency on
// internal/agent.
type ConversationSource interface {
	ModelName() string
	SystemPrompt() string
	Messages() []Message
	ThinkingLevel() ThinkingLevel
	MaxOutputTokens() int
}

// BuildFromConversation implements §4.10's build_from_conversation: fails
// with InvalidArg if the model is empty, otherwise copies the system
// prompt, messages (order preserved), thinking level, and max tokens, and
// defaults tool_choice to Auto.
func BuildFromConversation(src ConversationSource) ikerr.Result[Request] {
	model := src.ModelName()
	if model == "" {
		return ikerr.Err[Request](ikerr.New(ikerr.InvalidArg, "model is required"))
	}

	req := Request{
		Model:           model,
		SystemPrompt:    src.SystemPrompt(),
		Messages:        append([]Message{}, src.Messages()...),
		ToolChoice:      ToolChoiceAuto,
		MaxOutputTokens: src.MaxOutputTokens(),
		Thinking:        src.ThinkingLevel(),
	}
	return ikerr.Ok(req)
}
