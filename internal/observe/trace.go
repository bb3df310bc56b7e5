package observe

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type correlationKey struct{}

// NewCorrelationID returns a short random identifier correlating one
// utterance's path across pipeline stages (VAD boundary → transcription →
// suggestion).
func NewCorrelationID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b[:])
}

// WithCorrelationID stores id on the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the identifier stored by [WithCorrelationID], or ""
// when none is set.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// StartSpan opens a span for one pipeline stage on the global tracer
// provider, tagged with the utterance correlation identifier when present.
func StartSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(meterName).Start(ctx, stage)
	if id := CorrelationID(ctx); id != "" {
		span.SetAttributes(attribute.String("utterance.id", id))
	}
	return ctx, span
}

// EndSpan closes a span, recording err when the stage failed.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Logger returns the default logger enriched with the context's correlation
// identifier and, when a recording span is active, its trace id.
func Logger(ctx context.Context) *slog.Logger {
	log := slog.Default()
	if id := CorrelationID(ctx); id != "" {
		log = log.With("utterance_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		log = log.With("trace_id", sc.TraceID().String())
	}
	return log
}
