// Package dryrun implements a delivery client that logs messages instead
// of sending them, for no-op preview runs.
package dryrun

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pubnect/dispatch/internal/core"
)

// Provider logs every message it is asked to deliver and always succeeds.
type Provider struct {
	logger *zap.Logger
}

// New creates a dry-run provider writing to the given logger.
func New(logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{logger: logger}
}

// Send logs the rendered message and returns a synthetic message ID.
// No network call is made.
func (p *Provider) Send(_ context.Context, msg *core.Message) (*core.SendResult, error) {
	id := uuid.New().String()

	p.logger.Info("dry run: email not sent",
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_length", len(msg.HTML)),
		zap.String("message_id", id),
	)

	return &core.SendResult{
		MessageID: fmt.Sprintf("dryrun-%s", id),
		Provider:  p.Name(),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "dryrun"
}
