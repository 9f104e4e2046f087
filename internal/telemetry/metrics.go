package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/filedrop"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Connection metrics
	ConnectionsAcceptedTotal metric.Int64Counter
	AcceptErrorsTotal        metric.Int64Counter
	ActiveConnections        metric.Int64UpDownCounter

	// Handshake metrics
	HandshakeErrorsTotal metric.Int64Counter
	HandshakeDuration    metric.Float64Histogram

	// Request metrics
	RequestsTotal      metric.Int64Counter
	ResponseBytesTotal metric.Int64Counter
	RequestDuration    metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	return NewMetrics(otel.GetMeterProvider().Meter(meterName))
}

// NewMetrics creates the instruments on meter. Most callers want GetMetrics;
// this is for wiring a specific provider, such as a manual reader in tests.
func NewMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}

	m.ConnectionsAcceptedTotal, _ = meter.Int64Counter(
		"filedrop.connections.accepted.total",
		metric.WithDescription("Total number of raw connections accepted"),
		metric.WithUnit("{connection}"),
	)

	m.AcceptErrorsTotal, _ = meter.Int64Counter(
		"filedrop.connections.accept_errors.total",
		metric.WithDescription("Total number of listener accept errors"),
		metric.WithUnit("{error}"),
	)

	m.ActiveConnections, _ = meter.Int64UpDownCounter(
		"filedrop.connections.active",
		metric.WithDescription("Number of connections currently serving HTTP"),
		metric.WithUnit("{connection}"),
	)

	m.HandshakeErrorsTotal, _ = meter.Int64Counter(
		"filedrop.tls.handshake.errors.total",
		metric.WithDescription("Total number of failed TLS handshakes"),
		metric.WithUnit("{error}"),
	)

	m.HandshakeDuration, _ = meter.Float64Histogram(
		"filedrop.tls.handshake.duration",
		metric.WithDescription("Duration of successful TLS handshakes"),
		metric.WithUnit("ms"),
	)

	m.RequestsTotal, _ = meter.Int64Counter(
		"filedrop.http.requests.total",
		metric.WithDescription("Total number of HTTP requests served"),
		metric.WithUnit("{request}"),
	)

	m.ResponseBytesTotal, _ = meter.Int64Counter(
		"filedrop.http.response.bytes.total",
		metric.WithDescription("Total number of response body bytes written"),
		metric.WithUnit("By"),
	)

	m.RequestDuration, _ = meter.Float64Histogram(
		"filedrop.http.request.duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("ms"),
	)

	return m
}
