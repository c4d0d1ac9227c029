// Package observe provides application-wide observability primitives for
// Lectern: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Lectern metrics.
const meterName = "github.com/lectern-ai/lectern"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks model call latency. Use with attribute:
	//   attribute.String("operation", ...): analyze, define, research, summarize
	LLMDuration metric.Float64Histogram

	// PipelineDuration tracks wall time of a full analysis pipeline run.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// PipelineRuns counts pipeline executions. Use with attribute:
	//   attribute.String("status", ...): ok, retry
	PipelineRuns metric.Int64Counter

	// CardsCreated counts persisted cards. Use with attribute:
	//   attribute.String("kind", ...): auto_define, deep_research
	CardsCreated metric.Int64Counter

	// EventsSent counts WebSocket events delivered to clients. Use with
	// attribute: attribute.String("type", ...)
	EventsSent metric.Int64Counter

	// EventsDropped counts sessions torn down because a client could not keep
	// up with its outbound event stream.
	EventsDropped metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live lecture sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM round trips, which dominate the pipeline.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMDuration, err = m.Float64Histogram("lectern.llm.duration",
		metric.WithDescription("Latency of model calls by operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("lectern.pipeline.duration",
		metric.WithDescription("Wall time of a full analysis pipeline run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.PipelineRuns, err = m.Int64Counter("lectern.pipeline.runs",
		metric.WithDescription("Total analysis pipeline runs by status."),
	); err != nil {
		return nil, err
	}
	if met.CardsCreated, err = m.Int64Counter("lectern.cards.created",
		metric.WithDescription("Total cards persisted by kind."),
	); err != nil {
		return nil, err
	}
	if met.EventsSent, err = m.Int64Counter("lectern.ws.events.sent",
		metric.WithDescription("Total WebSocket events delivered by type."),
	); err != nil {
		return nil, err
	}
	if met.EventsDropped, err = m.Int64Counter("lectern.ws.events.dropped",
		metric.WithDescription("Sessions torn down due to a saturated outbound event buffer."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("lectern.sessions.active",
		metric.WithDescription("Number of live lecture sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("lectern.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordPipelineRun records one pipeline execution with its outcome status.
func (m *Metrics) RecordPipelineRun(ctx context.Context, status string) {
	m.PipelineRuns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordCardCreated records one persisted card by kind.
func (m *Metrics) RecordCardCreated(ctx context.Context, kind string) {
	m.CardsCreated.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordEventSent records one delivered WebSocket event by type.
func (m *Metrics) RecordEventSent(ctx context.Context, eventType string) {
	m.EventsSent.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", eventType)),
	)
}
