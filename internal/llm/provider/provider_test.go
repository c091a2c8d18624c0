package provider

import (
	"context"
	"testing"

	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	apiKey string
}

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) StreamRequest(ctx context.Context, req llm.Request, onEvent func(StreamEvent)) *ikerr.Error {
	return nil
}

type fakeCredentialSource struct {
	env   map[string]string
	creds Credentials
}

func (f fakeCredentialSource) Getenv(key string) string { return f.env[key] }
func (f fakeCredentialSource) LoadCredentials() (Credentials, error) {
	return f.creds, nil
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Register("openai", func(apiKey string) Provider { return stubProvider{"openai", apiKey} })
	r.Register("anthropic", func(apiKey string) Provider { return stubProvider{"anthropic", apiKey} })
	return r
}

func TestIsValidRejectsUnknownProvider(t *testing.T) {
	r := newTestRegistry()
	assert.True(t, r.IsValid("openai"))
	assert.False(t, r.IsValid("bogus"))
}

func TestCreatePrefersEnvVarOverCredentialsFile(t *testing.T) {
	r := newTestRegistry()
	src := fakeCredentialSource{
		env:   map[string]string{"OPENAI_API_KEY": "env-key"},
		creds: Credentials{"openai": {APIKey: "file-key"}},
	}
	res := r.Create("openai", src)
	p, err := res.Unwrap()
	require.Nil(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestCreateFallsBackToCredentialsFile(t *testing.T) {
	r := newTestRegistry()
	src := fakeCredentialSource{
		env:   map[string]string{},
		creds: Credentials{"anthropic": {APIKey: "file-key"}},
	}
	res := r.Create("anthropic", src)
	_, err := res.Unwrap()
	require.Nil(t, err)
}

func TestCreateReturnsMissingCredentialsWhenNeitherSourceHasKey(t *testing.T) {
	r := newTestRegistry()
	src := fakeCredentialSource{env: map[string]string{}, creds: Credentials{}}
	res := r.Create("openai", src)
	_, err := res.Unwrap()
	require.NotNil(t, err)
	assert.Equal(t, "missing_credentials", string(err.Cat))
}

func TestCreateRejectsUnknownProviderName(t *testing.T) {
	r := newTestRegistry()
	src := fakeCredentialSource{env: map[string]string{}, creds: Credentials{}}
	res := r.Create("bogus", src)
	_, err := res.Unwrap()
	require.NotNil(t, err)
	assert.Equal(t, "invalid_arg", string(err.Cat))
}

func TestInferProviderFromModelName(t *testing.T) {
	assert.Equal(t, "openai", InferProvider("gpt-5"))
	assert.Equal(t, "anthropic", InferProvider("claude-sonnet-4-5"))
	assert.Equal(t, "google", InferProvider("gemini-2.5-pro"))
	assert.Equal(t, "", InferProvider("llama-3"))
}
