package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartLedgerSpan creates a new span for a ledger transaction dispatch.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartLedgerSpan(ctx, "CreatePolicy", "submit", channel, chaincode)
//	defer endSpan(err)
func StartLedgerSpan(ctx context.Context, operation, mode, channel, chaincode string) (context.Context, func(error)) {
	tracer := otel.Tracer("ledger-gateway/ledger")

	ctx, span := tracer.Start(ctx, mode+" "+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ledger.operation", operation),
			attribute.String("ledger.mode", mode),
			attribute.String("ledger.channel", channel),
			attribute.String("ledger.chaincode", chaincode),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	tracer := otel.Tracer("ledger-gateway")

	ctx, span := tracer.Start(ctx, name)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
