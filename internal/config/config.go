// Package config loads and validates the JSON config file and the
// credentials file (§6), auto-creating the config with defaults on first
// run.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ikigai-term/ikigai/internal/ikerr"
)

const (
	minListenPort    = 1024
	maxListenPort    = 65535
	minMaxToolTurns  = 1
	maxMaxToolTurns  = 1000
	minMaxOutputSize = 1024
	maxMaxOutputSize = 104857600
	defaultHistory   = 10000
	maxInt32         = int(^uint32(0) >> 1)
)

// Config is the decoded shape of $HOME/.config/ikigai/config.json (§6).
// OpenAISystemMessage is a pointer since the field is nullable.
type Config struct {
	OpenAIModel               string  `json:"openai_model"`
	OpenAITemperature         float64 `json:"openai_temperature"`
	OpenAIMaxCompletionTokens int     `json:"openai_max_completion_tokens"`
	OpenAISystemMessage       *string `json:"openai_system_message"`
	ListenAddress             string  `json:"listen_address"`
	ListenPort                int     `json:"listen_port"`
	MaxToolTurns              int     `json:"max_tool_turns"`
	MaxOutputSize             int     `json:"max_output_size"`
	HistorySize               *int    `json:"history_size,omitempty"`
}

// Default returns the config written on first run.
func Default() Config {
	return Config{
		OpenAIModel:               "gpt-5",
		OpenAITemperature:         1.0,
		OpenAIMaxCompletionTokens: 4096,
		OpenAISystemMessage:       nil,
		ListenAddress:             "127.0.0.1",
		ListenPort:                8787,
		MaxToolTurns:              25,
		MaxOutputSize:             1048576,
	}
}

// ExpandTilde expands a leading "~" using HOME only (§6): expansion with
// an unset HOME is InvalidArg.
func ExpandTilde(path string) ikerr.Result[string] {
	if !strings.HasPrefix(path, "~") {
		return ikerr.Ok(path)
	}
	home := os.Getenv("HOME")
	if home == "" {
		return ikerr.Err[string](ikerr.New(ikerr.InvalidArg, "cannot expand %q: HOME is unset", path))
	}
	if path == "~" {
		return ikerr.Ok(home)
	}
	if strings.HasPrefix(path, "~/") {
		return ikerr.Ok(filepath.Join(home, path[2:]))
	}
	return ikerr.Ok(path)
}

// DefaultPath returns $HOME/.config/ikigai/config.json.
func DefaultPath() ikerr.Result[string] {
	res := ExpandTilde("~/.config/ikigai/config.json")
	return res
}

// CredentialsPath returns $HOME/.config/ikigai/credentials.json.
func CredentialsPath() ikerr.Result[string] {
	return ExpandTilde("~/.config/ikigai/credentials.json")
}

// Load reads path, auto-creating it with Default() if missing, then
// validates the result (§6).
func Load(path string) ikerr.Result[Config] {
	bytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if werr := writeDefault(path, cfg); werr != nil {
			return ikerr.Err[Config](werr)
		}
		return ikerr.Ok(cfg)
	}
	if err != nil {
		return ikerr.Err[Config](ikerr.Wrap(err, ikerr.IO, "failed to read config at %s", path))
	}

	var cfg Config
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return ikerr.Err[Config](ikerr.Wrap(err, ikerr.Parse, "config at %s is not valid JSON", path))
	}
	if jsonErr := requireFields(bytes); jsonErr != nil {
		return ikerr.Err[Config](jsonErr)
	}
	if verr := cfg.Validate(); verr != nil {
		return ikerr.Err[Config](verr)
	}
	return ikerr.Ok(cfg)
}

func writeDefault(path string, cfg Config) *ikerr.Error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ikerr.Wrap(err, ikerr.IO, "failed to create config directory for %s", path)
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return ikerr.Wrap(err, ikerr.Internal, "failed to marshal default config")
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return ikerr.Wrap(err, ikerr.IO, "failed to write default config to %s", path)
	}
	return nil
}

// requireFields rejects a config missing any required key or holding the
// wrong JSON type for it (§6: "load fails Parse if any is missing or
// wrong-typed").
func requireFields(raw []byte) *ikerr.Error {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ikerr.Wrap(err, ikerr.Parse, "config is not a JSON object")
	}

	type requirement struct {
		key     string
		check   func(any) bool
		typeErr string
	}
	isString := func(v any) bool { _, ok := v.(string); return ok }
	isNumber := func(v any) bool { _, ok := v.(float64); return ok }
	isStringOrNull := func(v any) bool {
		if v == nil {
			return true
		}
		_, ok := v.(string)
		return ok
	}

	reqs := []requirement{
		{"openai_model", isString, "string"},
		{"openai_temperature", isNumber, "number"},
		{"openai_max_completion_tokens", isNumber, "integer"},
		{"openai_system_message", isStringOrNull, "string|null"},
		{"listen_address", isString, "string"},
		{"listen_port", isNumber, "integer"},
		{"max_tool_turns", isNumber, "integer"},
		{"max_output_size", isNumber, "integer"},
	}
	for _, r := range reqs {
		v, present := doc[r.key]
		if !present {
			return ikerr.New(ikerr.Parse, "config missing required field %q", r.key)
		}
		if !r.check(v) {
			return ikerr.New(ikerr.Parse, "config field %q must be %s", r.key, r.typeErr)
		}
	}
	return nil
}

// Validate applies §6's range validations.
func (c Config) Validate() *ikerr.Error {
	if c.ListenPort < minListenPort || c.ListenPort > maxListenPort {
		return ikerr.New(ikerr.OutOfRange, "listen_port %d out of range [%d,%d]", c.ListenPort, minListenPort, maxListenPort)
	}
	if c.MaxToolTurns < minMaxToolTurns || c.MaxToolTurns > maxMaxToolTurns {
		return ikerr.New(ikerr.OutOfRange, "max_tool_turns %d out of range [%d,%d]", c.MaxToolTurns, minMaxToolTurns, maxMaxToolTurns)
	}
	if c.MaxOutputSize < minMaxOutputSize || c.MaxOutputSize > maxMaxOutputSize {
		return ikerr.New(ikerr.OutOfRange, "max_output_size %d out of range [%d,%d]", c.MaxOutputSize, minMaxOutputSize, maxMaxOutputSize)
	}
	if c.HistorySize != nil && (*c.HistorySize <= 0 || *c.HistorySize > maxInt32) {
		return ikerr.New(ikerr.OutOfRange, "history_size %d out of range (0,%d]", *c.HistorySize, maxInt32)
	}
	return nil
}

// HistorySizeOrDefault returns the configured history size, or 10000.
func (c Config) HistorySizeOrDefault() int {
	if c.HistorySize == nil {
		return defaultHistory
	}
	return *c.HistorySize
}
