// Package config provides configuration types and helpers for dmask.
package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bimmerbailey/dmask/internal/document"
	"github.com/bimmerbailey/dmask/internal/masking"
	"github.com/bimmerbailey/dmask/internal/validate"
)

// Config holds the application-wide configuration.
type Config struct {
	Format   string        `mapstructure:"format"`
	Verbose  bool          `mapstructure:"verbose"`
	LogLevel string        `mapstructure:"log_level"`
	Masking  MaskingConfig `mapstructure:"masking"`
	LLM      LLMConfig     `mapstructure:"llm"`
	Server   ServerConfig  `mapstructure:"server"`
}

// MaskingConfig declares the masking pipeline.
type MaskingConfig struct {
	// Enabled switches masking off entirely when false; documents are
	// passed through unchanged.
	Enabled bool `mapstructure:"enabled"`

	// Indent is used for JSON output; its length is the YAML indent.
	Indent string `mapstructure:"indent"`

	// InputFormat is auto, json, yaml or ndjson.
	InputFormat string `mapstructure:"input_format"`

	// Maskers declares custom maskers by name, in addition to the built-ins.
	Maskers map[string]masking.Definition `mapstructure:"maskers"`

	// Rules maps a masker name to the selectors it applies to.
	Rules map[string][]string `mapstructure:"rules"`
}

// LLMConfig holds configuration for LLM providers.
type LLMConfig struct {
	// Provider selects which LLM to use. Only "ollama" is supported.
	Provider string `mapstructure:"provider"`

	// Global settings applied to all providers
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	Ollama OllamaConfig `mapstructure:"ollama"`
}

// OllamaConfig holds Ollama-specific settings.
type OllamaConfig struct {
	Host      string `mapstructure:"host"`       // API endpoint
	Model     string `mapstructure:"model"`      // Default model name
	KeepAlive string `mapstructure:"keep_alive"` // e.g., "5m"
	NumCtx    int    `mapstructure:"num_ctx"`    // Context window size
}

// ServerConfig holds settings for the HTTP masking server.
type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	ReadTimeout  string `mapstructure:"read_timeout"`  // e.g., "30s", "1m"
	WriteTimeout string `mapstructure:"write_timeout"` // e.g., "30s", "1m"
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

// Timeouts parses the read and write timeouts.
func (s ServerConfig) Timeouts() (read, write time.Duration, err error) {
	if read, err = ParseDuration(s.ReadTimeout); err != nil {
		return 0, 0, fmt.Errorf("server.read_timeout: %w", err)
	}
	if write, err = ParseDuration(s.WriteTimeout); err != nil {
		return 0, 0, fmt.Errorf("server.write_timeout: %w", err)
	}
	return read, write, nil
}

// Defaults returns the default value of every configuration key.
func Defaults() map[string]any {
	return map[string]any{
		"format":                "text",
		"verbose":               false,
		"log_level":             "info",
		"masking.enabled":       true,
		"masking.indent":        "",
		"masking.input_format":  string(document.FormatAuto),
		"llm.provider":          "ollama",
		"llm.temperature":       0.0,
		"llm.max_tokens":        0,
		"llm.ollama.host":       "http://localhost:11434",
		"llm.ollama.model":      "llama3.2",
		"server.addr":           ":8080",
		"server.read_timeout":   "30s",
		"server.write_timeout":  "30s",
		"server.max_body_bytes": int64(10 << 20),
	}
}

// Validate checks the values that are not validated when they are used.
func (c *Config) Validate() error {
	_, levelOK := ParseLevel(c.LogLevel)
	_, formatErr := document.ParseFormat(c.Masking.InputFormat)

	return validate.First(
		validate.True("format", isOneOf(c.Format, "text", "json", "table"), "must be text, json or table"),
		validate.True("log_level", levelOK, "must be debug, info, warn or error"),
		validate.True("masking.input_format", formatErr == nil, "must be auto, json, yaml or ndjson"),
		validate.True("server.max_body_bytes", c.Server.MaxBodyBytes >= 0, "must not be negative"),
	)
}

// MaskerNames returns the names of the custom maskers, sorted.
func (m MaskingConfig) MaskerNames() []string {
	names := make([]string, 0, len(m.Maskers))
	for name := range m.Maskers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to
// info and report false.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "dbg":
		return slog.LevelDebug, true
	case "", "info", "inf":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "err":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func isOneOf(s string, options ...string) bool {
	for _, o := range options {
		if strings.EqualFold(s, o) {
			return true
		}
	}
	return false
}
