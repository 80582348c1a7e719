package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pubnect/dispatch/internal/core"
)

// Type aliases to re-export core types for the public API.
// This allows users to access types like dispatch.Record instead of
// core.Record, maintaining a clean public interface while keeping
// implementation details internal.
type (
	Provider        = core.Provider
	Message         = core.Message
	SendResult      = core.SendResult
	Record          = core.Record
	Vars            = core.Vars
	FieldMap        = core.FieldMap
	Summary         = core.Summary
	ValidationError = core.ValidationError
	ProviderError   = core.ProviderError
)

// Error constructors and classification helpers re-exported from the
// core package, so callers match and build errors without importing it.
var (
	NewValidationError = core.NewValidationError
	NewNetworkError    = core.NewNetworkError
	NewHTTPError       = core.NewHTTPError
	IsRetryable        = core.IsRetryable
)

// DefaultEmailColumn is the input column holding the recipient address
// unless overridden with WithEmailColumn.
const DefaultEmailColumn = "email"

// Pipeline dispatches templated emails to a stream of recipient records.
// Recipients are processed strictly in input order, one at a time; a
// Pipeline holds no mutable state between runs and may be reused.
type Pipeline struct {
	config      Config
	provider    Provider
	renderer    *Renderer
	fields      FieldMap
	emailColumn string
	logger      *zap.Logger
	tracer      trace.Tracer

	// sleep performs context-aware waits; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a dispatch pipeline with the given configuration and
// delivery provider.
func New(config Config, provider Provider, opts ...Option) (*Pipeline, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if provider == nil {
		return nil, core.NewValidationError("provider", "delivery provider is required")
	}

	p := &Pipeline{
		config:      config,
		provider:    provider,
		renderer:    NewRenderer(),
		fields:      FieldMap{},
		emailColumn: DefaultEmailColumn,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer("github.com/pubnect/dispatch"),
		sleep:       sleepContext,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Run processes every record from src in order and returns the aggregate
// summary. Per-recipient failures are counted, logged and do not stop the
// run; Run returns a non-nil error only when the context is cancelled or
// the record source fails, together with the summary accumulated so far.
func (p *Pipeline) Run(ctx context.Context, src RecordSource) (Summary, error) {
	ctx, span := p.tracer.Start(ctx, "dispatch.Pipeline.Run")
	defer span.End()

	span.SetAttributes(
		attribute.String("dispatch.provider", p.provider.Name()),
		attribute.String("dispatch.from", p.config.SenderEmail),
	)

	var summary Summary
	first := true

	for {
		record, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			err = fmt.Errorf("read recipient record: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "record source failed")
			return summary, err
		}

		// Pacing delay between distinct recipients, never before the
		// first or after the last. Independent of retry backoff.
		if !first {
			if err := p.sleep(ctx, p.config.SendDelay()); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "run cancelled")
				return summary, err
			}
		}
		first = false

		summary.Record(p.process(ctx, record) == nil)

		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "run cancelled")
			return summary, err
		}
	}

	span.SetAttributes(
		attribute.Int("dispatch.total", summary.Total),
		attribute.Int("dispatch.succeeded", summary.Succeeded),
		attribute.Int("dispatch.failed", summary.Failed),
	)
	span.SetStatus(codes.Ok, "run completed")

	return summary, nil
}

// process takes one recipient through the full state machine and returns
// its terminal outcome. Rendering always happens before any delivery call.
func (p *Pipeline) process(ctx context.Context, record Record) error {
	ctx, span := p.tracer.Start(ctx, "dispatch.Pipeline.send")
	defer span.End()

	recipient := record.Get(p.emailColumn)
	if recipient == "" {
		err := fmt.Errorf("%w: %q", ErrMissingEmailColumn, p.emailColumn)
		p.logger.Error("skipping record without recipient address",
			zap.String("email_column", p.emailColumn),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "missing email column")
		return err
	}

	span.SetAttributes(attribute.String("dispatch.to", recipient))

	vars, err := p.buildVars(record)
	if err != nil {
		p.logger.Error("failed to assemble template variables",
			zap.String("recipient", recipient),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "variable assembly failed")
		return err
	}

	body, err := p.renderer.Render(p.config.Template, vars)
	if err != nil {
		// Deterministic failure: retrying with the same missing
		// variable cannot succeed.
		p.logger.Error("template render failed",
			zap.String("recipient", recipient),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return err
	}

	msg := &Message{
		From:    p.config.SenderEmail,
		To:      recipient,
		Subject: p.config.Subject,
		HTML:    body,
	}

	if err := p.sendWithRetry(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		return err
	}

	span.SetStatus(codes.Ok, "email sent")
	return nil
}

// buildVars assembles the template variables for one recipient: mapped
// input columns first, then the configured registration link, then a
// generated registration code unless the input already supplied one.
func (p *Pipeline) buildVars(record Record) (Vars, error) {
	vars := make(Vars, len(p.fields)+2)

	for name, column := range p.fields {
		if value, ok := record[column]; ok {
			vars[name] = value
		}
	}

	if p.config.RegistrationLink != "" {
		vars[RegistrationLinkVar] = p.config.RegistrationLink
	}

	if _, ok := vars[CodeVar]; !ok {
		code, err := GenerateCode()
		if err != nil {
			return nil, err
		}
		vars[CodeVar] = code
	}

	return vars, nil
}

// sendWithRetry drives the per-recipient retry loop: at most
// MaxRetries delivery attempts in total, with the configured backoff
// between attempts. Both transport errors and non-success provider
// responses consume an attempt.
func (p *Pipeline) sendWithRetry(ctx context.Context, msg *Message) error {
	var lastErr error

	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		result, err := p.provider.Send(ctx, msg)
		if err == nil {
			p.logger.Info("email sent",
				zap.String("recipient", msg.To),
				zap.String("provider", result.Provider),
				zap.String("message_id", result.MessageID),
				zap.Int("attempt", attempt),
			)
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			p.logger.Error("delivery failed permanently",
				zap.String("recipient", msg.To),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}

		remaining := p.config.MaxRetries - attempt
		if remaining == 0 {
			p.logger.Error("maximum retries reached",
				zap.String("recipient", msg.To),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			break
		}

		p.logger.Warn("delivery failed, retrying",
			zap.String("recipient", msg.To),
			zap.Int("attempt", attempt),
			zap.Int("remaining", remaining),
			zap.Error(err),
		)

		if err := p.sleep(ctx, p.config.RetryBackoff()); err != nil {
			return err
		}
	}

	return lastErr
}

// sleepContext waits for the given duration or until the context is
// cancelled, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
