// Package observe provides observability for lingosync: OpenTelemetry
// metrics and tracing, trace-aware slog loggers and HTTP middleware that ties
// them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by [InitProvider]; [Handler] serves them on /metrics. Tests
// should build their own instance with [NewMetrics] and a manual reader
// instead of using [DefaultMetrics].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/lingosync"

// Cache tiers for [Metrics.RecordCacheLookup].
const (
	TierMemory     = "memory"
	TierPersistent = "persistent"
)

// Metrics holds the metric instruments of the pipeline.
type Metrics struct {
	// TranslationDuration tracks provider translation latency per provider.
	TranslationDuration metric.Float64Histogram

	// SynthesisDuration tracks the time from speak request to first audio.
	SynthesisDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls by provider, kind and status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures by provider and kind.
	ProviderErrors metric.Int64Counter

	// CacheLookups counts translation cache lookups by tier and result.
	CacheLookups metric.Int64Counter

	// CueChanges counts active cue transitions seen by the processor.
	CueChanges metric.Int64Counter

	// Utterances counts speech utterances by status.
	Utterances metric.Int64Counter

	// PipelineErrors counts per-item failures by stage
	// (translate, speak, source).
	PipelineErrors metric.Int64Counter

	// BridgeMessages counts websocket messages by type and direction.
	BridgeMessages metric.Int64Counter

	// TranslationQueueDepth tracks cues waiting for translation.
	TranslationQueueDepth metric.Int64UpDownCounter

	// ActiveSessions tracks connected extension sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request time by method and path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds sized for translation
// and synthesis round trips.
var latencyBuckets = []float64{
	0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranslationDuration, err = m.Float64Histogram("lingosync.translation.duration",
		metric.WithDescription("Latency of provider translation requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("lingosync.speech.start_latency",
		metric.WithDescription("Time from speak request to first audio."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("lingosync.provider.requests",
		metric.WithDescription("Provider API requests by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lingosync.provider.errors",
		metric.WithDescription("Provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("lingosync.translation.cache.lookups",
		metric.WithDescription("Translation cache lookups by tier and result."),
	); err != nil {
		return nil, err
	}
	if met.CueChanges, err = m.Int64Counter("lingosync.processor.cue_changes",
		metric.WithDescription("Active subtitle cue transitions."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("lingosync.speech.utterances",
		metric.WithDescription("Speech utterances by status."),
	); err != nil {
		return nil, err
	}
	if met.PipelineErrors, err = m.Int64Counter("lingosync.pipeline.errors",
		metric.WithDescription("Per-item pipeline failures by stage."),
	); err != nil {
		return nil, err
	}
	if met.BridgeMessages, err = m.Int64Counter("lingosync.bridge.messages",
		metric.WithDescription("Bridge websocket messages by type and direction."),
	); err != nil {
		return nil, err
	}

	if met.TranslationQueueDepth, err = m.Int64UpDownCounter("lingosync.translation.queue_depth",
		metric.WithDescription("Cues waiting for translation."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("lingosync.active_sessions",
		metric.WithDescription("Connected extension sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("lingosync.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built on the global
// meter provider. It panics if instrument creation fails.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError counts one provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCacheLookup counts a cache hit or miss on the given tier.
func (m *Metrics) RecordCacheLookup(ctx context.Context, tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tier", tier),
			attribute.String("result", result),
		),
	)
}

// RecordCueChange counts a transition of the active cue.
func (m *Metrics) RecordCueChange(ctx context.Context) {
	m.CueChanges.Add(ctx, 1)
}

// RecordUtterance counts an utterance outcome ("ok", "error", "cancelled").
func (m *Metrics) RecordUtterance(ctx context.Context, status string) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordPipelineError counts a swallowed per-item failure.
func (m *Metrics) RecordPipelineError(ctx context.Context, stage string) {
	m.PipelineErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordBridgeMessage counts a websocket message. direction is "in" or "out".
func (m *Metrics) RecordBridgeMessage(ctx context.Context, msgType, direction string) {
	m.BridgeMessages.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("type", msgType),
			attribute.String("direction", direction),
		),
	)
}
