// Package logger builds the zap loggers used across the storefront.
package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// New returns a development logger for env "development" or "dev" and a JSON production logger otherwise.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "development", "dev":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}

// FromContext decorates l with the trace and span ids carried by ctx, if any.
func FromContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	spanContext := trace.SpanContextFromContext(ctx)
	if !spanContext.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", spanContext.TraceID().String()),
		zap.String("span_id", spanContext.SpanID().String()),
	)
}
