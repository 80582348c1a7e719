package dispatch

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option is a functional option for configuring the dispatch pipeline.
type Option func(*Pipeline)

// WithEmailColumn overrides the input column holding the recipient
// address (default "email").
func WithEmailColumn(column string) Option {
	return func(p *Pipeline) {
		if column != "" {
			p.emailColumn = column
		}
	}
}

// WithFieldMap sets the template-variable to input-column mapping used to
// assemble per-recipient variables.
func WithFieldMap(fields FieldMap) Option {
	return func(p *Pipeline) {
		if fields != nil {
			p.fields = fields
		}
	}
}

// WithLogger sets the structured logger for per-attempt send events.
// The pipeline logs nothing by default.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer overrides the OpenTelemetry tracer used for run and
// per-recipient spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}
