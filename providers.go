package dispatch

import (
	"go.uber.org/zap"

	"github.com/pubnect/dispatch/internal/providers/dryrun"
	"github.com/pubnect/dispatch/internal/providers/mailgun"
)

// NewMailgunProvider creates the Mailgun delivery client from the domain,
// API key, base URL and timeout in the given configuration.
func NewMailgunProvider(config Config) (Provider, error) {
	config.applyDefaults()
	return mailgun.New(config.Domain, config.APIKey, config.BaseURL, config.Timeout())
}

// NewDryRunProvider creates a delivery client that logs each message
// instead of sending it, for preview runs. A nil logger disables output.
func NewDryRunProvider(logger *zap.Logger) Provider {
	return dryrun.New(logger)
}
