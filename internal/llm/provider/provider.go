// Package provider defines the per-provider adapter capability interface
// (§4.12, §9 "Function pointers / vtables"), the provider-agnostic
// StreamEvent union, and the static registry/factory/credential-resolution
// logic of §4.11.
package provider

import (
	"context"

	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/llm"
)

// FinishReason is why a streaming response ended.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishError         FinishReason = "error"
)

// Usage reports token accounting from a Finish event.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	ThinkingTokens   int
}

// StreamEventKind discriminates the StreamEvent union (§4.12).
type StreamEventKind int

const (
	EventContentDelta StreamEventKind = iota
	EventToolCallStart
	EventToolCallDelta
	EventToolCallDone
	EventError
	EventFinish
)

// StreamEvent is the provider-agnostic union emitted to the agent's
// callback while a streaming request is in flight.
type StreamEvent struct {
	Kind StreamEventKind

	// EventContentDelta
	Text string

	// EventToolCallStart / Delta / Done
	ToolIndex   int
	ToolCallID  string
	ToolName    string
	ArgsDelta   string

	// EventError
	Category      ikerr.Category
	Message       string
	Retryable     bool
	RetryAfterMs  int

	// EventFinish
	Reason FinishReason
	Usage  Usage
}

// ModelCaps exposes thinking-level-to-concrete-parameter mapping, where a
// provider supports it (§4.12 model_caps).
type ModelCaps interface {
	SupportsThinking(model string) bool
	ThinkingParam(model string, level llm.ThinkingLevel) (ikerr.Result[any], bool)
}

// Provider is the capability interface every per-provider adapter
// implements (§4.12, §9). StreamRequest drives an in-flight SSE request,
// invoking onEvent for every StreamEvent and returning once the stream
// concludes (terminal Finish/Error event already delivered to onEvent).
type Provider interface {
	Name() string
	StreamRequest(ctx context.Context, req llm.Request, onEvent func(StreamEvent)) *ikerr.Error
}

// Factory constructs a Provider bound to an API key.
type Factory func(apiKey string) Provider

// EnvVar is the canonical environment variable name for a provider's API
// key (§4.11, §6).
var EnvVar = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GOOGLE_API_KEY",
}

// Registry is the static provider name -> factory dispatch table (§4.11).
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates a provider name with its factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// IsValid is exact, case-sensitive provider-name membership (§4.11).
func (r *Registry) IsValid(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// List returns the registered provider names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	return names
}

// Credentials is the parsed shape of credentials.json (§6): a map of
// provider name to its stored API key.
type Credentials map[string]struct {
	APIKey string `json:"api_key"`
}

// CredentialSource resolves env vars and the on-disk credentials file; the
// REPL wires this to os.Getenv and the real config directory, tests to
// fakes (§9 "weak linker symbols" => injected dependencies).
type CredentialSource interface {
	Getenv(key string) string
	LoadCredentials() (Credentials, error) // parse errors are non-fatal per §4.11
}

// Create implements ik_provider_create (§4.11): validates the provider
// name, resolves the API key by precedence (env var, then credentials
// file), and dispatches to the provider-specific factory.
func (r *Registry) Create(name string, src CredentialSource) ikerr.Result[Provider] {
	factory, ok := r.factories[name]
	if !ok {
		return ikerr.Err[Provider](ikerr.New(ikerr.InvalidArg, "unknown provider %q", name))
	}

	envVar := EnvVar[name]
	if key := src.Getenv(envVar); key != "" {
		return ikerr.Ok(factory(key))
	}

	creds, _ := src.LoadCredentials() // parse errors downgrade to a warning, not a failure
	if entry, ok := creds[name]; ok && entry.APIKey != "" {
		return ikerr.Ok(factory(entry.APIKey))
	}

	return ikerr.Err[Provider](ikerr.New(ikerr.MissingCredentials,
		"missing API key for provider %q: set %s or add credentials.json", name, envVar))
}

// InferProvider is the pure model-name-prefix classifier (§4.14 "Cross-
// provider forks infer the new provider from the new model name", §8
// "Provider inference").
func InferProvider(model string) string {
	switch {
	case hasPrefix(model, "gpt-"), hasPrefix(model, "o1"), hasPrefix(model, "o3"), hasPrefix(model, "o4"):
		return "openai"
	case hasPrefix(model, "claude-"):
		return "anthropic"
	case hasPrefix(model, "gemini-"):
		return "google"
	default:
		return ""
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
