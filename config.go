package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/pubnect/dispatch/internal/core"
)

// Config holds the complete send configuration for one run. It is built
// once by the loading layer and never mutated by the pipeline.
//
// Delay fields are expressed in seconds to match the on-disk configuration
// document; use SendDelay and RetryBackoff for durations.
type Config struct {
	// Domain is the provider sending domain.
	Domain string `json:"domain"`

	// APIKey is the provider API credential.
	APIKey string `json:"api_key"`

	// SenderEmail is the From address for every message.
	SenderEmail string `json:"sender_email"`

	// Subject is the subject line for every message.
	Subject string `json:"subject"`

	// Template is the message body template with named placeholders.
	Template string `json:"template"`

	// RegistrationLink, when set, is injected into the template variables
	// under the registration_link placeholder.
	RegistrationLink string `json:"registration_link"`

	// DelayBetweenEmails is the pacing delay between distinct recipients,
	// in seconds.
	DelayBetweenEmails float64 `json:"delay_between_emails"`

	// MaxRetries is the total number of delivery attempts per recipient.
	MaxRetries int `json:"max_retries"`

	// RetryDelay is the backoff delay between retry attempts, in seconds.
	RetryDelay float64 `json:"retry_delay"`

	// BaseURL is the provider API base URL. Defaults to the Mailgun US
	// endpoint when empty.
	BaseURL string `json:"base_url,omitempty"`

	// TimeoutSeconds bounds each delivery attempt. Defaults to 30.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// SendDelay returns the pacing delay between recipients as a duration.
func (c Config) SendDelay() time.Duration {
	return time.Duration(c.DelayBetweenEmails * float64(time.Second))
}

// RetryBackoff returns the delay between retry attempts as a duration.
func (c Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryDelay * float64(time.Second))
}

// Timeout returns the per-attempt delivery timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DefaultConfig returns a configuration with sensible defaults and
// placeholder values for the required fields.
func DefaultConfig() Config {
	return Config{
		Domain:      "your-mailgun-domain.com",
		APIKey:      "your-mailgun-api-key",
		SenderEmail: "your-email@example.com",
		Subject:     "Your Email Subject",
		Template: "<html><body>\n" +
			"<p>Hello,<br><br>\n" +
			"This is a template email. You can use variables like {name}, {title}, etc.<br><br>\n" +
			"Best regards,<br>\n" +
			"Your Team</p>\n" +
			"</body></html>",
		RegistrationLink:   "",
		DelayBetweenEmails: 1.0,
		MaxRetries:         3,
		RetryDelay:         20.0,
		BaseURL:            "https://api.mailgun.net",
		TimeoutSeconds:     30,
	}
}

// Load reads a JSON configuration document from disk and applies
// environment overrides, loading a .env file from the working directory
// first if one exists. Missing required fields fail validation.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ConfigError{Path: path, Message: "configuration file not found", Cause: err}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, &ConfigError{Path: path, Message: "invalid JSON in configuration file", Cause: err}
	}

	cfg.applyDefaults()

	// .env values populate the environment without overriding variables
	// already set, then take effect through applyEnv.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	return cfg, nil
}

// FromEnv builds a configuration entirely from environment variables,
// loading a .env file first if one exists. It covers the credential
// variables DOMAIN, API_KEY and SENDER_EMAIL plus the optional tuning
// variables; the template and subject must still be supplied by the caller.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{}
	cfg.applyDefaults()
	cfg.DelayBetweenEmails = 1.0
	cfg.MaxRetries = 3
	cfg.RetryDelay = 20.0
	cfg.applyEnv()
	return cfg
}

// applyDefaults fills optional fields left at their zero value.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.mailgun.net"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
}

// applyEnv overlays credential environment variables onto the config,
// taking precedence over file values when present.
func (c *Config) applyEnv() {
	if v := os.Getenv("DOMAIN"); v != "" {
		c.Domain = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("SENDER_EMAIL"); v != "" {
		c.SenderEmail = v
	}
	if v := os.Getenv("MAILGUN_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
}

// Validate checks if the configuration is valid and complete.
func (c *Config) Validate() error {
	required := []struct {
		field, value string
	}{
		{"domain", c.Domain},
		{"api_key", c.APIKey},
		{"sender_email", c.SenderEmail},
		{"subject", c.Subject},
		{"template", c.Template},
	}
	for _, r := range required {
		if r.value == "" {
			return core.NewValidationError(r.field, "required field is missing")
		}
	}

	if c.MaxRetries < 1 {
		return core.NewValidationError("max_retries", "must be at least 1")
	}
	if c.DelayBetweenEmails < 0 {
		return core.NewValidationError("delay_between_emails", "must not be negative")
	}
	if c.RetryDelay < 0 {
		return core.NewValidationError("retry_delay", "must not be negative")
	}
	if c.TimeoutSeconds <= 0 {
		return core.NewValidationError("timeout_seconds", "must be greater than 0")
	}

	return nil
}

// WriteDefault writes a template configuration document with placeholder
// values to the given path. The caller is expected to edit it before use.
func WriteDefault(path string) error {
	cfg := DefaultConfig()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return &ConfigError{Path: path, Message: "failed to write default configuration", Cause: err}
	}

	return nil
}
