// Package config provides configuration types and loading for the realm CLI.
package config

import (
	"time"

	"github.com/teamstreem/realm/internal/airtable"
	"github.com/teamstreem/realm/internal/assistant"
	"github.com/teamstreem/realm/internal/dashboard"
	"github.com/teamstreem/realm/internal/reconcile"
)

// Config holds all CLI configuration options.
type Config struct {
	Airtable  AirtableConfig  `koanf:"airtable"`
	Assistant AssistantConfig `koanf:"assistant"`
	Kids      KidsConfig      `koanf:"kids"`
	Serve     ServeConfig     `koanf:"serve"`
	StatePath string          `koanf:"state_path"`
	Verbose   bool            `koanf:"verbose"`
	Output    string          `koanf:"output"`
}

// AirtableConfig points the gateway at one base.
type AirtableConfig struct {
	BaseURL     string        `koanf:"base_url"`
	BaseID      string        `koanf:"base_id"`
	Token       string        `koanf:"token"`
	Timeout     time.Duration `koanf:"timeout"`
	ListTimeout time.Duration `koanf:"list_timeout"`
	RateLimit   float64       `koanf:"rate_limit"`
}

// AssistantConfig configures the chat assistant.
type AssistantConfig struct {
	BaseURL       string        `koanf:"base_url"`
	APIKey        string        `koanf:"api_key"`
	Model         string        `koanf:"model"`
	MaxTokens     int           `koanf:"max_tokens"`
	HistoryWindow int           `koanf:"history_window"`
	Timeout       time.Duration `koanf:"timeout"`
}

// KidsConfig tunes the kid-filtered view.
type KidsConfig struct {
	SessionLimit int `koanf:"session_limit"`
}

// ServeConfig configures the dashboard server.
type ServeConfig struct {
	Port            int           `koanf:"port"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	Watch           bool          `koanf:"watch"`
}

// Default configuration values.
const (
	DefaultStateFile = ".realm/state.db"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Credential variables honoured when the REALM_ equivalents are unset.
const (
	EnvAirtableToken  = "AIRTABLE_API_KEY"
	EnvAirtableBaseID = "AIRTABLE_BASE_ID"
	EnvAnthropicKey   = "ANTHROPIC_API_KEY"
)

// defaults is the lowest configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"airtable.base_url":        airtable.DefaultBaseURL,
		"airtable.timeout":         airtable.DefaultTimeout.String(),
		"airtable.list_timeout":    airtable.DefaultListTimeout.String(),
		"airtable.rate_limit":      airtable.DefaultRateLimit,
		"assistant.base_url":       assistant.DefaultBaseURL,
		"assistant.model":          assistant.DefaultModel,
		"assistant.max_tokens":     assistant.DefaultMaxTokens,
		"assistant.history_window": assistant.DefaultHistoryWindow,
		"assistant.timeout":        assistant.DefaultTimeout.String(),
		"kids.session_limit":       reconcile.DefaultKidsSessionLimit,
		"serve.port":               dashboard.DefaultPort,
		"serve.refresh_interval":   dashboard.DefaultRefreshInterval.String(),
		"serve.watch":              true,
		"state_path":               DefaultStateFile,
		"verbose":                  false,
		"output":                   DefaultOutput,
	}
}
