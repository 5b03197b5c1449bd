package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/teamstreem/realm/internal/airtable"
)

// Validation errors.
var (
	ErrMissingBaseID = errors.New("airtable base id is required")
	ErrMissingToken  = errors.New("airtable token is required")
)

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	switch c.Output {
	case "auto", "text", "markdown", "json":
	default:
		return fmt.Errorf("invalid output format %q (want auto, text, markdown or json)", c.Output)
	}
	if c.Kids.SessionLimit < 0 {
		return fmt.Errorf("kids.session_limit must not be negative")
	}
	return nil
}

// ValidateRemote checks the settings needed before talking to the base.
// Help and local-only commands skip it.
func (c *Config) ValidateRemote() error {
	if c.Airtable.BaseID == "" {
		return fmt.Errorf("%w\nHint: set %s or airtable.base_id in realm.yaml", ErrMissingBaseID, EnvAirtableBaseID)
	}
	if c.Airtable.Token == "" {
		return fmt.Errorf("%w\nHint: set %s", ErrMissingToken, EnvAirtableToken)
	}
	u, err := url.Parse(c.Airtable.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: base url %q", airtable.ErrInvalidConfig, c.Airtable.BaseURL)
	}
	return nil
}
