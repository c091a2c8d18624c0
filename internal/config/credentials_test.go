package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCredentialSourceLoadsJSONShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"openai":{"api_key":"sk-test"}}`), 0o600))

	src := FileCredentialSource{Path: path}
	creds, err := src.LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", creds["openai"].APIKey)
}

func TestFileCredentialSourceFallsBackToYAMLShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte("anthropic:\n  api_key: sk-yaml\n"), 0o600))

	src := FileCredentialSource{Path: path}
	creds, err := src.LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "sk-yaml", creds["anthropic"].APIKey)
}

func TestFileCredentialSourceReturnsErrorWhenMissing(t *testing.T) {
	src := FileCredentialSource{Path: filepath.Join(t.TempDir(), "missing.json")}
	_, err := src.LoadCredentials()
	assert.Error(t, err)
}

func TestFileCredentialSourceGetenvReadsRealEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-value")
	src := FileCredentialSource{}
	assert.Equal(t, "env-value", src.Getenv("OPENAI_API_KEY"))
}
