// Package anthropic adapts the canonical request/response model to
// Anthropic's messages API (§4.12): POST /v1/messages with a top-level
// system string (not a message), stream:true, and event-tagged SSE
// (`event: ...` followed by `data: {...}`).
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/ikigai-term/ikigai/internal/httpengine"
	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/ikigai-term/ikigai/internal/llm/provider"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	defaultMaxTokens = 4096
)

// Provider is the Anthropic messages-API adapter.
type Provider struct {
	apiKey  string
	baseURL string
	engine  *httpengine.Engine
}

// New constructs an Anthropic Provider bound to apiKey. Satisfies
// provider.Factory.
func New(apiKey string) provider.Provider {
	return &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		engine:  httpengine.New(httpengine.WithHeaderParser(httpengine.ParseAnthropicRateLimitHeaders)),
	}
}

func (p *Provider) Name() string { return "anthropic" }

type content struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type message struct {
	Role    string    `json:"role"`
	Content []content `json:"content"`
}

type tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type request struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	System    string    `json:"system,omitempty"`
	MaxTokens int       `json:"max_tokens"`
	Tools     []tool    `json:"tools,omitempty"`
	Stream    bool      `json:"stream"`
}

// serializeRequest implements §4.12's Anthropic serialize_request step.
func serializeRequest(req llm.Request) request {
	var msgs []message
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			continue
		}
		msgs = append(msgs, message{Role: roleString(m.Role), Content: toContentBlocks(m)})
	}

	var tools []tool
	for _, t := range req.Tools {
		tools = append(tools, tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: json.RawMessage(t.ParametersSchemaJSON),
		})
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return request{
		Model:     req.Model,
		Messages:  msgs,
		System:    req.SystemPrompt,
		MaxTokens: maxTokens,
		Tools:     tools,
		Stream:    true,
	}
}

func toContentBlocks(m llm.Message) []content {
	var out []content
	for _, b := range m.ContentBlocks {
		switch b.Kind {
		case llm.BlockText:
			out = append(out, content{Type: "text", Text: b.Text})
		case llm.BlockToolCall:
			out = append(out, content{Type: "tool_use", ID: b.ToolCallID, Name: b.ToolName, Input: json.RawMessage(b.ArgumentsJSON)})
		case llm.BlockToolResult:
			out = append(out, content{Type: "tool_result", ToolUseID: b.ToolResultCallID, Content: b.OutputText})
		}
	}
	return out
}

func roleString(r llm.Role) string {
	if r == llm.RoleAssistant {
		return "assistant"
	}
	return "user" // Anthropic folds Tool-role results into a user-turn tool_result block
}

type streamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	ContentBlock *content `json:"content_block"`
	Usage        *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// StreamRequest implements the Provider capability interface.
func (p *Provider) StreamRequest(ctx context.Context, req llm.Request, onEvent func(provider.StreamEvent)) *ikerr.Error {
	body, err := json.Marshal(serializeRequest(req))
	if err != nil {
		return ikerr.Wrap(err, ikerr.Parse, "failed to encode anthropic request")
	}

	httpReq, err := http.NewRequest(http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return ikerr.Wrap(err, ikerr.Internal, "failed to build anthropic request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	ch := p.engine.StartRequest(ctx, httpReq)

	var currentEventType string
	toolUseIDs := map[int]string{}
	var usage provider.Usage

	for ev := range ch {
		switch ev.Kind {
		case httpengine.EventLine:
			line := ev.Line
			if bytes.HasPrefix(line, []byte("event: ")) {
				currentEventType = string(bytes.TrimSpace(line[len("event: "):]))
				continue
			}
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			data := bytes.TrimSpace(line[len("data: "):])

			var se streamEvent
			if err := json.Unmarshal(data, &se); err != nil {
				currentEventType = ""
				continue
			}
			eventType := currentEventType
			if eventType == "" {
				eventType = se.Type
			}
			currentEventType = ""

			switch eventType {
			case "content_block_start":
				if se.ContentBlock != nil && se.ContentBlock.Type == "tool_use" {
					toolUseIDs[se.Index] = se.ContentBlock.ID
					onEvent(provider.StreamEvent{Kind: provider.EventToolCallStart, ToolIndex: se.Index, ToolCallID: se.ContentBlock.ID, ToolName: se.ContentBlock.Name})
				}
			case "content_block_delta":
				if se.Delta == nil {
					continue
				}
				if se.Delta.Type == "text_delta" && se.Delta.Text != "" {
					onEvent(provider.StreamEvent{Kind: provider.EventContentDelta, Text: se.Delta.Text})
				}
				if se.Delta.Type == "input_json_delta" && se.Delta.PartialJSON != "" {
					onEvent(provider.StreamEvent{Kind: provider.EventToolCallDelta, ToolIndex: se.Index, ToolCallID: toolUseIDs[se.Index], ArgsDelta: se.Delta.PartialJSON})
				}
			case "content_block_stop":
				if id, ok := toolUseIDs[se.Index]; ok {
					onEvent(provider.StreamEvent{Kind: provider.EventToolCallDone, ToolIndex: se.Index, ToolCallID: id})
				}
			case "message_delta":
				if se.Usage != nil {
					usage.OutputTokens = se.Usage.OutputTokens
				}
			case "message_stop":
				onEvent(provider.StreamEvent{Kind: provider.EventFinish, Reason: provider.FinishStop, Usage: usage})
				return nil
			case "error":
				if se.Error != nil {
					cat := anthropicErrorCategory(se.Error.Type)
					onEvent(provider.StreamEvent{Kind: provider.EventError, Category: cat, Message: se.Error.Message, Retryable: cat.Retryable()})
					return ikerr.New(cat, "anthropic error: %s", se.Error.Message)
				}
			}

		case httpengine.EventDone:
			return nil

		case httpengine.EventError:
			onEvent(provider.StreamEvent{
				Kind:      provider.EventError,
				Category:  ikerr.CategoryOf(ev.Err),
				Message:   ev.Err.Error(),
				Retryable: ikerr.CategoryOf(ev.Err).Retryable(),
			})
			return ev.Err
		}
	}
	return nil
}

// anthropicErrorCategory maps Anthropic's error.type to the taxonomy of §7.
// 529 ("overloaded_error") is explicitly retryable per §4.12.
func anthropicErrorCategory(errType string) ikerr.Category {
	switch errType {
	case "authentication_error", "permission_error":
		return ikerr.Auth
	case "rate_limit_error":
		return ikerr.RateLimit
	case "overloaded_error":
		return ikerr.Server
	case "invalid_request_error":
		return ikerr.InvalidArg
	case "not_found_error":
		return ikerr.NotFound
	default:
		return ikerr.Server
	}
}
