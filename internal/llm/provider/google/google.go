// Package google adapts the canonical request/response model to Google's
// Gemini generateContent API (§4.12): POST
// /v1beta/models/{model}:streamGenerateContent?alt=sse, contents[] with
// role in {user,model}, tools[].functionDeclarations, and a per-series
// thinking configuration (thinking.go).
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ikigai-term/ikigai/internal/httpengine"
	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/ikigai-term/ikigai/internal/llm/provider"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Provider is the Google Gemini adapter.
type Provider struct {
	apiKey  string
	baseURL string
	engine  *httpengine.Engine
}

// New constructs a Google Provider bound to apiKey. Satisfies
// provider.Factory.
func New(apiKey string) provider.Provider {
	return &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		engine:  httpengine.New(httpengine.WithHeaderParser(httpengine.ParseGoogleRateLimitHeaders)),
	}
}

func (p *Provider) Name() string { return "google" }

// SupportsThinking and ThinkingParam satisfy provider.ModelCaps, exposing
// the same series dispatch buildThinkingConfig uses internally so callers
// (e.g. a future model-picker/completion source) can ask a provider
// whether a given model honors thinking level without sending a request.
func (p *Provider) SupportsThinking(model string) bool {
	return SupportsThinking(model)
}

func (p *Provider) ThinkingParam(model string, level llm.ThinkingLevel) (ikerr.Result[any], bool) {
	cfg := buildThinkingConfig(model, level)
	if cfg == nil {
		return ikerr.Result[any]{}, false
	}
	return ikerr.Ok[any](cfg), true
}

type part map[string]any

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type toolSet struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations,omitempty"`
}

type functionCallingConfig struct {
	Mode string `json:"mode"`
}

type toolConfig struct {
	FunctionCallingConfig functionCallingConfig `json:"functionCallingConfig"`
}

type thinkingConfig struct {
	ThinkingBudget  *int   `json:"thinkingBudget,omitempty"`
	ThinkingLevel   string `json:"thinkingLevel,omitempty"`
	IncludeThoughts bool   `json:"includeThoughts,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type request struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             []toolSet         `json:"tools,omitempty"`
	ToolConfig        *toolConfig       `json:"toolConfig,omitempty"`
}

// serializeRequest implements §4.12's Google serialize_request step
// including the thinking-budget/level dispatch of thinking.go. It returns
// InvalidArg if req.Thinking is invalid for req.Model (ValidateThinking),
// mirroring the original ik_google_validate_thinking pre-flight check.
func serializeRequest(req llm.Request) (request, *ikerr.Error) {
	if err := ValidateThinking(req.Model, req.Thinking); err != nil {
		return request{}, err
	}
	var contents []content
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			continue
		}
		contents = append(contents, content{Role: geminiRole(m.Role), Parts: toParts(m)})
	}

	var sys *content
	if req.SystemPrompt != "" {
		sys = &content{Parts: []part{{"text": req.SystemPrompt}}}
	}

	var tools []toolSet
	if len(req.Tools) > 0 {
		var decls []functionDeclaration
		for _, t := range req.Tools {
			var schema map[string]any
			if err := json.Unmarshal([]byte(t.ParametersSchemaJSON), &schema); err == nil {
				delete(schema, "additionalProperties") // Gemini's schema subset rejects this keyword
			}
			decls = append(decls, functionDeclaration{Name: t.Name, Description: t.Description, Parameters: schema})
		}
		tools = []toolSet{{FunctionDeclarations: decls}}
	}

	var tc *toolConfig
	switch req.ToolChoice {
	case llm.ToolChoiceNone:
		tc = &toolConfig{FunctionCallingConfig: functionCallingConfig{Mode: "NONE"}}
	case llm.ToolChoiceRequired:
		tc = &toolConfig{FunctionCallingConfig: functionCallingConfig{Mode: "ANY"}}
	default:
		if len(tools) > 0 {
			tc = &toolConfig{FunctionCallingConfig: functionCallingConfig{Mode: "AUTO"}}
		}
	}

	gc := &generationConfig{MaxOutputTokens: req.MaxOutputTokens}
	if tcfg := buildThinkingConfig(req.Model, req.Thinking); tcfg != nil {
		gc.ThinkingConfig = tcfg
	}

	return request{
		Contents:          contents,
		SystemInstruction: sys,
		GenerationConfig:  gc,
		Tools:             tools,
		ToolConfig:        tc,
	}, nil
}

// buildThinkingConfig dispatches on model series: Gemini 2.5 gets a numeric
// thinkingBudget, Gemini 3.x gets a named thinkingLevel, everything else
// gets no thinking configuration at all.
func buildThinkingConfig(model string, level llm.ThinkingLevel) *thinkingConfig {
	switch Series(model) {
	case SeriesGemini25:
		budget, ok := ThinkingBudget(model, level)
		if !ok {
			return nil
		}
		return &thinkingConfig{ThinkingBudget: &budget, IncludeThoughts: true}
	case SeriesGemini3:
		return &thinkingConfig{ThinkingLevel: ThinkingLevelString(model, level), IncludeThoughts: true}
	default:
		return nil
	}
}

func geminiRole(r llm.Role) string {
	if r == llm.RoleAssistant {
		return "model"
	}
	return "user" // Tool-role results are folded into a user-turn functionResponse part
}

func toParts(m llm.Message) []part {
	var out []part
	for _, b := range m.ContentBlocks {
		switch b.Kind {
		case llm.BlockText:
			out = append(out, part{"text": b.Text})
		case llm.BlockToolCall:
			var args map[string]any
			_ = json.Unmarshal([]byte(b.ArgumentsJSON), &args)
			fc := part{"functionCall": map[string]any{"name": b.ToolName, "args": args}}
			if b.ThoughtSignature != "" {
				fc["thoughtSignature"] = b.ThoughtSignature
			}
			out = append(out, fc)
		case llm.BlockToolResult:
			out = append(out, part{"functionResponse": map[string]any{
				"name":     b.ToolResultCallID,
				"response": map[string]any{"output": b.OutputText, "error": b.IsError},
			}})
		}
	}
	return out
}

type streamCandidate struct {
	Content struct {
		Parts []struct {
			Text             string         `json:"text"`
			ThoughtSignature string         `json:"thoughtSignature"`
			FunctionCall     *functionCall  `json:"functionCall"`
		} `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type streamResponse struct {
	Candidates    []streamCandidate `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		ThoughtsTokenCount   int `json:"thoughtsTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// StreamRequest implements the Provider capability interface.
func (p *Provider) StreamRequest(ctx context.Context, req llm.Request, onEvent func(provider.StreamEvent)) *ikerr.Error {
	wire, kerr := serializeRequest(req)
	if kerr != nil {
		return kerr
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return ikerr.Wrap(err, ikerr.Parse, "failed to encode gemini request")
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s", p.baseURL, req.Model, p.apiKey)
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ikerr.Wrap(err, ikerr.Internal, "failed to build gemini request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	ch := p.engine.StartRequest(ctx, httpReq)

	toolIndex := 0
	for ev := range ch {
		switch ev.Kind {
		case httpengine.EventLine:
			line := ev.Line
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			data := bytes.TrimSpace(line[len("data: "):])

			var sr streamResponse
			if err := json.Unmarshal(data, &sr); err != nil {
				continue
			}
			if sr.Error != nil {
				cat := googleErrorCategory(sr.Error.Status)
				onEvent(provider.StreamEvent{Kind: provider.EventError, Category: cat, Message: sr.Error.Message, Retryable: cat.Retryable()})
				return ikerr.New(cat, "gemini error: %s", sr.Error.Message)
			}
			if len(sr.Candidates) == 0 {
				continue
			}
			c := sr.Candidates[0]
			for _, part := range c.Content.Parts {
				if part.Text != "" {
					onEvent(provider.StreamEvent{Kind: provider.EventContentDelta, Text: part.Text})
				}
				if part.FunctionCall != nil {
					args, _ := json.Marshal(part.FunctionCall.Args)
					onEvent(provider.StreamEvent{Kind: provider.EventToolCallStart, ToolIndex: toolIndex, ToolName: part.FunctionCall.Name})
					onEvent(provider.StreamEvent{Kind: provider.EventToolCallDelta, ToolIndex: toolIndex, ArgsDelta: string(args)})
					onEvent(provider.StreamEvent{Kind: provider.EventToolCallDone, ToolIndex: toolIndex})
					toolIndex++
				}
			}
			if c.FinishReason != "" {
				usage := provider.Usage{}
				if sr.UsageMetadata != nil {
					usage.PromptTokens = sr.UsageMetadata.PromptTokenCount
					usage.CompletionTokens = sr.UsageMetadata.CandidatesTokenCount
					usage.ThinkingTokens = sr.UsageMetadata.ThoughtsTokenCount
				}
				onEvent(provider.StreamEvent{Kind: provider.EventFinish, Reason: geminiFinishReason(c.FinishReason), Usage: usage})
				return nil
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

func geminiFinishReason(r string) provider.FinishReason {
	switch r {
	case "MAX_TOKENS":
		return provider.FinishLength
	case "SAFETY", "RECITATION":
		return provider.FinishContentFilter
	default:
		return provider.FinishStop
	}
}

// googleErrorCategory maps Gemini's error.status string to the taxonomy of
// §7.
func googleErrorCategory(status string) ikerr.Category {
	switch status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return ikerr.Auth
	case "RESOURCE_EXHAUSTED":
		return ikerr.RateLimit
	case "UNAVAILABLE", "INTERNAL":
		return ikerr.Server
	case "DEADLINE_EXCEEDED":
		return ikerr.Timeout
	case "INVALID_ARGUMENT":
		return ikerr.InvalidArg
	case "NOT_FOUND":
		return ikerr.NotFound
	default:
		return ikerr.Server
	}
}
