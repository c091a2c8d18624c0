// Package openai adapts the canonical request/response model to OpenAI's
// chat-completions-compatible wire format (§4.12): POST /v1/chat/completions
// with stream:true, SSE framed as `data: {...}\n\n` terminated by
// `data: [DONE]`.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ikigai-term/ikigai/internal/httpengine"
	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/ikigai-term/ikigai/internal/llm/provider"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Provider is the OpenAI chat-completions adapter.
type Provider struct {
	apiKey  string
	baseURL string
	engine  *httpengine.Engine
}

// New constructs an OpenAI Provider bound to apiKey. Satisfies
// provider.Factory.
func New(apiKey string) provider.Provider {
	return &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		engine:  httpengine.New(httpengine.WithHeaderParser(httpengine.ParseOpenAIRateLimitHeaders)),
	}
}

func (p *Provider) Name() string { return "openai" }

type message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function toolCallFunc `json:"function"`
}

type toolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model               string      `json:"model"`
	Messages            []message   `json:"messages"`
	Tools               []toolDef   `json:"tools,omitempty"`
	ToolChoice          interface{} `json:"tool_choice,omitempty"`
	MaxCompletionTokens int         `json:"max_completion_tokens,omitempty"`
	Stream              bool        `json:"stream"`
}

// serializeRequest implements the §4.12 OpenAI serialize_request step.
func serializeRequest(req llm.Request) chatRequest {
	var msgs []message
	if req.SystemPrompt != "" {
		msgs = append(msgs, message{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, toWireMessages(m)...)
	}

	var tools []toolDef
	for _, t := range req.Tools {
		tools = append(tools, toolDef{
			Type: "function",
			Function: functionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.ParametersSchemaJSON),
			},
		})
	}

	var toolChoice interface{}
	switch req.ToolChoice {
	case llm.ToolChoiceNone:
		toolChoice = "none"
	case llm.ToolChoiceRequired:
		toolChoice = "required"
	default:
		if len(tools) > 0 {
			toolChoice = "auto"
		}
	}

	return chatRequest{
		Model:               req.Model,
		Messages:            msgs,
		Tools:               tools,
		ToolChoice:          toolChoice,
		MaxCompletionTokens: req.MaxOutputTokens,
		Stream:              true,
	}
}

func toWireMessages(m llm.Message) []message {
	role := roleString(m.Role)

	var out []message
	var textParts []string
	var calls []toolCall

	for _, b := range m.ContentBlocks {
		switch b.Kind {
		case llm.BlockText:
			textParts = append(textParts, b.Text)
		case llm.BlockToolCall:
			calls = append(calls, toolCall{
				ID:   b.ToolCallID,
				Type: "function",
				Function: toolCallFunc{
					Name:      b.ToolName,
					Arguments: b.ArgumentsJSON,
				},
			})
		case llm.BlockToolResult:
			out = append(out, message{
				Role:       "tool",
				Content:    b.OutputText,
				ToolCallID: b.ToolResultCallID,
			})
		}
	}

	if len(textParts) > 0 || len(calls) > 0 {
		out = append([]message{{
			Role:      role,
			Content:   strings.Join(textParts, ""),
			ToolCalls: calls,
		}}, out...)
	}

	return out
}

func roleString(r llm.Role) string {
	switch r {
	case llm.RoleSystem:
		return "system"
	case llm.RoleAssistant:
		return "assistant"
	case llm.RoleTool:
		return "tool"
	default:
		return "user"
	}
}

type sseChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// errorBody is the shape of a non-2xx OpenAI error response (§4.12:
// "Error body shape {error:{message,type,code}}"), parsed out of the raw
// httpengine.EventError body.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// openaiErrorCategory maps an OpenAI error's type/code to the taxonomy of
// §7, mirroring anthropicErrorCategory/googleErrorCategory. §4.12 names one
// concrete body-based case: 400 + "context_length_exceeded" -> InvalidArg.
func openaiErrorCategory(errType, code string) ikerr.Category {
	switch {
	case code == "context_length_exceeded" || errType == "context_length_exceeded":
		return ikerr.InvalidArg
	case errType == "invalid_request_error":
		return ikerr.InvalidArg
	case errType == "insufficient_quota" || errType == "rate_limit_exceeded":
		return ikerr.RateLimit
	case errType == "authentication_error" || errType == "permission_error":
		return ikerr.Auth
	default:
		return ikerr.Server
	}
}

// StreamRequest implements the Provider capability interface.
func (p *Provider) StreamRequest(ctx context.Context, req llm.Request, onEvent func(provider.StreamEvent)) *ikerr.Error {
	body, err := json.Marshal(serializeRequest(req))
	if err != nil {
		return ikerr.Wrap(err, ikerr.Parse, "failed to encode openai request")
	}

	httpReq, err := http.NewRequest(http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ikerr.Wrap(err, ikerr.Internal, "failed to build openai request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	ch := p.engine.StartRequest(ctx, httpReq)

	toolIndexToID := map[int]string{}
	for ev := range ch {
		switch ev.Kind {
		case httpengine.EventLine:
			line := ev.Line
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			data := bytes.TrimSpace(line[len("data: "):])
			if string(data) == "[DONE]" {
				onEvent(provider.StreamEvent{Kind: provider.EventFinish, Reason: provider.FinishStop})
				return nil
			}

			var chunk sseChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				continue // malformed SSE payload discarded, matches the input parser's tolerant stance
			}
			if chunk.Error != nil {
				cat := openaiErrorCategory(chunk.Error.Type, chunk.Error.Code)
				onEvent(provider.StreamEvent{Kind: provider.EventError, Category: cat, Message: chunk.Error.Message, Retryable: cat.Retryable()})
				return ikerr.New(cat, "openai error: %s", chunk.Error.Message)
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			c := chunk.Choices[0]
			if c.Delta.Content != "" {
				onEvent(provider.StreamEvent{Kind: provider.EventContentDelta, Text: c.Delta.Content})
			}
			for _, tc := range c.Delta.ToolCalls {
				if tc.ID != "" {
					toolIndexToID[tc.Index] = tc.ID
					onEvent(provider.StreamEvent{Kind: provider.EventToolCallStart, ToolIndex: tc.Index, ToolCallID: tc.ID, ToolName: tc.Function.Name})
				}
				if tc.Function.Arguments != "" {
					onEvent(provider.StreamEvent{Kind: provider.EventToolCallDelta, ToolIndex: tc.Index, ToolCallID: toolIndexToID[tc.Index], ArgsDelta: tc.Function.Arguments})
				}
			}
			if c.FinishReason != "" {
				if c.FinishReason == "tool_calls" {
					for idx, id := range toolIndexToID {
						onEvent(provider.StreamEvent{Kind: provider.EventToolCallDone, ToolIndex: idx, ToolCallID: id})
					}
				}
				onEvent(provider.StreamEvent{
					Kind:   provider.EventFinish,
					Reason: finishReason(c.FinishReason),
					Usage: provider.Usage{
						PromptTokens:     chunk.Usage.PromptTokens,
						CompletionTokens: chunk.Usage.CompletionTokens,
					},
				})
				return nil
			}

		case httpengine.EventDone:
			return nil

		case httpengine.EventError:
			cat := ikerr.CategoryOf(ev.Err)
			msg := ev.Err.Error()
			if len(ev.Body) > 0 {
				var parsed errorBody
				if json.Unmarshal(ev.Body, &parsed) == nil && parsed.Error.Message != "" {
					cat = openaiErrorCategory(parsed.Error.Type, parsed.Error.Code)
					msg = parsed.Error.Message
				}
			}
			onEvent(provider.StreamEvent{
				Kind:      provider.EventError,
				Category:  cat,
				Message:   msg,
				Retryable: cat.Retryable(),
			})
			return ikerr.New(cat, "%s", msg)
		}
	}
	return nil
}

func finishReason(s string) provider.FinishReason {
	switch s {
	case "length":
		return provider.FinishLength
	case "content_filter":
		return provider.FinishContentFilter
	case "tool_calls":
		return provider.FinishToolCalls
	default:
		return provider.FinishStop
	}
}
