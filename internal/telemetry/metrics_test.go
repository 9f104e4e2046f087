package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestGetMetrics_singleton(t *testing.T) {
	require.Same(t, GetMetrics(), GetMetrics())
}

func TestNewMetrics_records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m := NewMetrics(provider.Meter(meterName))
	ctx := context.Background()

	m.ConnectionsAcceptedTotal.Add(ctx, 3)
	m.HandshakeErrorsTotal.Add(ctx, 1)
	m.ActiveConnections.Add(ctx, 2)
	m.ActiveConnections.Add(ctx, -1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range sum.DataPoints {
				sums[md.Name] += dp.Value
			}
		}
	}

	require.Equal(t, int64(3), sums["filedrop.connections.accepted.total"])
	require.Equal(t, int64(1), sums["filedrop.tls.handshake.errors.total"])
	require.Equal(t, int64(1), sums["filedrop.connections.active"])
}
