package http

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/filedrop/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type contextKey string

const connIDContextKey contextKey = "conn_id"

// WithConnID stores the connection identifier in the context.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDContextKey, id)
}

// ConnIDFromContext returns the connection identifier set by WithConnID.
func ConnIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(connIDContextKey).(string)
	return id
}

// ClientIP returns the host part of the request's remote address.
// Forwarding headers are not consulted.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequestLogger attaches a request scoped logger to the context and logs
// every completed request with its status, size and duration.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.With().
				Str("conn_id", ConnIDFromContext(r.Context())).
				Str("client_ip", ClientIP(r)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger().WithContext(r.Context())

			m := httpsnoop.CaptureMetrics(next, w, r.WithContext(ctx))

			zerolog.Ctx(ctx).Info().
				Int("status", m.Code).
				Int64("bytes", m.Written).
				Dur("duration", m.Duration).
				Msg("request")
		})
	}
}

// RequestMetrics records request counts, response sizes and latency.
func RequestMetrics(metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			attrs := metric.WithAttributes(attribute.String("http.status_code", strconv.Itoa(m.Code)))
			metrics.RequestsTotal.Add(r.Context(), 1, attrs)
			metrics.ResponseBytesTotal.Add(r.Context(), m.Written, attrs)
			metrics.RequestDuration.Record(r.Context(), float64(m.Duration)/float64(time.Millisecond), attrs)
		})
	}
}
