// Package observe provides observability primitives for the speech pipeline:
// OpenTelemetry metric instruments and a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// wires a Prometheus exporter so everything remains scrapeable via the
// standard /metrics endpoint. Tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all pipeline metrics.
const meterName = "github.com/Savin-Alex/ai-consul-sub001"

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// realtime speech latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Metrics holds the metric instruments for the pipeline. All fields are safe
// for concurrent use.
type Metrics struct {
	// VADDuration tracks per-frame voice activity classification latency.
	VADDuration metric.Float64Histogram

	// TranscribeDuration tracks per-utterance transcription latency across
	// all engine attempts. Attribute: engine.
	TranscribeDuration metric.Float64Histogram

	// GenerateDuration tracks suggestion generation latency.
	// Attribute: provider.
	GenerateDuration metric.Float64Histogram

	// EngineRequests counts transcription engine attempts.
	// Attributes: engine, status.
	EngineRequests metric.Int64Counter

	// ProviderRequests counts LLM provider calls.
	// Attributes: provider, status.
	ProviderRequests metric.Int64Counter

	// FramesDropped counts capture chunks dropped under backpressure.
	FramesDropped metric.Int64Counter

	// UtterancesFlushed counts utterance buffer flushes.
	// Attribute: reason (pause | ceiling).
	UtterancesFlushed metric.Int64Counter

	// ActiveSessions tracks live capture sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// NewMetrics creates every instrument on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.VADDuration, err = m.Float64Histogram("aiconsul.vad.duration",
		metric.WithDescription("Latency of per-frame voice activity classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("aiconsul.transcribe.duration",
		metric.WithDescription("Latency of utterance transcription per engine attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerateDuration, err = m.Float64Histogram("aiconsul.generate.duration",
		metric.WithDescription("Latency of suggestion generation per provider attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EngineRequests, err = m.Int64Counter("aiconsul.engine.requests",
		metric.WithDescription("Transcription engine attempts by engine and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("aiconsul.provider.requests",
		metric.WithDescription("LLM provider calls by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("aiconsul.capture.frames_dropped",
		metric.WithDescription("Capture chunks dropped because the producer queue was full."),
	); err != nil {
		return nil, err
	}
	if met.UtterancesFlushed, err = m.Int64Counter("aiconsul.utterance.flushes",
		metric.WithDescription("Utterance buffer flushes by trigger reason."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("aiconsul.sessions.active",
		metric.WithDescription("Live capture sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide Metrics built on the global meter
// provider. Instrument creation errors leave a usable zero struct; recording
// on nil instruments is skipped by the helpers below.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			m = &Metrics{}
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordEngineAttempt records one transcription engine attempt.
func (m *Metrics) RecordEngineAttempt(ctx context.Context, engine, status string, seconds float64) {
	if m == nil || m.EngineRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("status", status),
	)
	m.EngineRequests.Add(ctx, 1, attrs)
	m.TranscribeDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("engine", engine)))
}

// RecordProviderAttempt records one LLM provider call.
func (m *Metrics) RecordProviderAttempt(ctx context.Context, provider, status string, seconds float64) {
	if m == nil || m.ProviderRequests == nil {
		return
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
	m.GenerateDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordFlush records one utterance flush with its trigger reason.
func (m *Metrics) RecordFlush(ctx context.Context, reason string) {
	if m == nil || m.UtterancesFlushed == nil {
		return
	}
	m.UtterancesFlushed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
