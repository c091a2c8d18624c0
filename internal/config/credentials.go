package config

import (
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ikigai-term/ikigai/internal/llm/provider"
)

// FileCredentialSource implements provider.CredentialSource by reading
// real environment variables and the on-disk credentials.json (§4.11,
// §6). Parse failure is non-fatal: LoadCredentials returns an error the
// caller is expected to log as a warning, not surface to the user, since
// absence/corruption is only fatal when no env var satisfies the request.
type FileCredentialSource struct {
	Path string
}

func (f FileCredentialSource) Getenv(key string) string { return os.Getenv(key) }

func (f FileCredentialSource) LoadCredentials() (provider.Credentials, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}

	var creds provider.Credentials
	if err := json.Unmarshal(raw, &creds); err == nil {
		return creds, nil
	}

	// Fall back to a YAML-shaped credentials file: the teacher's config
	// ecosystem accepts either, and our test fixtures exercise both.
	var yamlDoc map[string]struct {
		APIKey string `yaml:"api_key"`
	}
	if err := yaml.Unmarshal(raw, &yamlDoc); err != nil {
		return nil, err
	}
	creds = make(provider.Credentials, len(yamlDoc))
	for name, entry := range yamlDoc {
		creds[name] = struct {
			APIKey string `json:"api_key"`
		}{APIKey: entry.APIKey}
	}
	return creds, nil
}
