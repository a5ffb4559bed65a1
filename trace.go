package tiercache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// startSpan opens a span around a coordinator operation when a tracer
// provider is configured. Without one it is a no-op passthrough, keeping
// tracing cost off the hot path entirely.
func (c *Coordinator) startSpan(ctx context.Context, op, domain string) (context.Context, func()) {
	if c.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := c.tracer.Start(ctx, "tiercache."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.operation", op),
			attribute.String("cache.domain", domain),
		),
	)
	return ctx, func() { span.End() }
}
