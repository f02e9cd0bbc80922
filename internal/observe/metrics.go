// Package observe provides application-wide observability primitives for
// Arivox: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all Arivox metrics.
const meterName = "github.com/arivox/arivox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation. The Record* convenience methods are nil-receiver
// safe so call paths can run without a metrics bundle in tests.
type Metrics struct {
	// --- Latency histograms ---

	// CallDuration tracks the wall-clock length of a call from answer to close.
	CallDuration metric.Float64Histogram

	// RecognitionDuration tracks time from stream activation to the final
	// transcript (or timeout).
	RecognitionDuration metric.Float64Histogram

	// BatchFallbackDuration tracks one-shot fallback transcription latency.
	BatchFallbackDuration metric.Float64Histogram

	// --- Counters ---

	// Cleanups counts call terminations. Use with attributes:
	//   attribute.String("reason", ...), attribute.Bool("hangup", ...)
	Cleanups metric.Int64Counter

	// TimerFires counts registry timer expirations by timer name.
	TimerFires metric.Int64Counter

	// DTMFDigits counts received keypad digits.
	DTMFDigits metric.Int64Counter

	// RecognizerErrors counts recognition session failures. Use with
	// attributes: attribute.String("provider", ...), attribute.String("kind", ...)
	RecognizerErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveCalls tracks the number of live calls.
	ActiveCalls metric.Int64UpDownCounter

	// OperatorClients tracks the number of connected operator consoles.
	OperatorClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for telephony interaction lengths.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CallDuration, err = m.Float64Histogram("arivox.call.duration",
		metric.WithDescription("Wall-clock call length from answer to close."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecognitionDuration, err = m.Float64Histogram("arivox.recognition.duration",
		metric.WithDescription("Time from stream activation to final transcript or timeout."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BatchFallbackDuration, err = m.Float64Histogram("arivox.batch_fallback.duration",
		metric.WithDescription("Latency of one-shot fallback transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Cleanups, err = m.Int64Counter("arivox.call.cleanups",
		metric.WithDescription("Total call terminations by reason and hangup flag."),
	); err != nil {
		return nil, err
	}
	if met.TimerFires, err = m.Int64Counter("arivox.timer.fires",
		metric.WithDescription("Total registry timer expirations by timer name."),
	); err != nil {
		return nil, err
	}
	if met.DTMFDigits, err = m.Int64Counter("arivox.dtmf.digits",
		metric.WithDescription("Total keypad digits received."),
	); err != nil {
		return nil, err
	}
	if met.RecognizerErrors, err = m.Int64Counter("arivox.recognizer.errors",
		metric.WithDescription("Total recognition session failures by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCalls, err = m.Int64UpDownCounter("arivox.active_calls",
		metric.WithDescription("Number of live calls."),
	); err != nil {
		return nil, err
	}
	if met.OperatorClients, err = m.Int64UpDownCounter("arivox.operator_clients",
		metric.WithDescription("Number of connected operator consoles."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("arivox.http.request.duration",
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

// RecordCleanup records one call termination.
func (m *Metrics) RecordCleanup(ctx context.Context, reason string, hangup bool) {
	if m == nil {
		return
	}
	m.Cleanups.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("reason", reason),
			attribute.Bool("hangup", hangup),
		),
	)
}

// RecordTimerFire records one registry timer expiration.
func (m *Metrics) RecordTimerFire(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.TimerFires.Add(ctx, 1, metric.WithAttributes(attribute.String("timer", name)))
}

// RecordDTMFDigit records one received keypad digit.
func (m *Metrics) RecordDTMFDigit(ctx context.Context) {
	if m == nil {
		return
	}
	m.DTMFDigits.Add(ctx, 1)
}

// RecordRecognizerError records one recognition session failure.
func (m *Metrics) RecordRecognizerError(ctx context.Context, provider, kind string) {
	if m == nil {
		return
	}
	m.RecognizerErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// CallStarted bumps the active-call gauge.
func (m *Metrics) CallStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveCalls.Add(ctx, 1)
}

// CallEnded drops the active-call gauge and records the call length.
func (m *Metrics) CallEnded(ctx context.Context, seconds float64) {
	if m == nil {
		return
	}
	m.ActiveCalls.Add(ctx, -1)
	m.CallDuration.Record(ctx, seconds)
}
