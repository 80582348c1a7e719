// Package mailgun implements the delivery client against the Mailgun
// Messages API: one form-encoded POST to /v3/<domain>/messages per
// attempt, authenticated with basic auth ("api", key).
package mailgun

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/pubnect/dispatch/internal/core"
)

// DefaultTimeout bounds a delivery attempt when no timeout is supplied.
const DefaultTimeout = 30 * time.Second

// Provider implements core.Provider for Mailgun.
type Provider struct {
	client  mailgun.Mailgun
	timeout time.Duration
}

// New creates a Mailgun provider for the given sending domain. baseURL
// selects the API region ("" for the US endpoint); timeout bounds each
// attempt.
func New(domain, apiKey, baseURL string, timeout time.Duration) (*Provider, error) {
	if apiKey == "" {
		return nil, core.NewValidationError("api_key", "Mailgun API key is required")
	}
	if domain == "" {
		return nil, core.NewValidationError("domain", "Mailgun domain is required")
	}

	client := mailgun.NewMailgun(domain, apiKey)
	if baseURL != "" {
		client.SetAPIBase(strings.TrimSuffix(baseURL, "/") + "/v3")
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Provider{
		client:  client,
		timeout: timeout,
	}, nil
}

// Send performs one delivery attempt. A non-success provider response
// yields a retryable error carrying the status code and response body; a
// transport failure or timeout yields a retryable network error.
func (p *Provider) Send(ctx context.Context, msg *core.Message) (*core.SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	message := p.client.NewMessage(msg.From, msg.Subject, "", msg.To)
	message.SetHtml(msg.HTML)

	_, id, err := p.client.Send(ctx, message)
	if err != nil {
		var unexpected *mailgun.UnexpectedResponseError
		if errors.As(err, &unexpected) {
			return nil, core.NewHTTPError(p.Name(), unexpected.Actual, string(unexpected.Data))
		}
		return nil, core.NewNetworkError(p.Name(), err)
	}

	return &core.SendResult{
		MessageID: strings.Trim(id, "<>"),
		Provider:  p.Name(),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mailgun"
}
