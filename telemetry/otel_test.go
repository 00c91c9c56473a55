package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"gameservices/config"
)

func TestParseEndpoint(t *testing.T) {
	host, insecure, err := parseEndpoint("https://example.com:4318")
	require.NoError(t, err)
	require.Equal(t, "example.com:4318", host)
	require.False(t, insecure)

	host, insecure, err = parseEndpoint("http://localhost:4318")
	require.NoError(t, err)
	require.Equal(t, "localhost:4318", host)
	require.True(t, insecure)
}

func TestInitNoEndpointUsesNoop(t *testing.T) {
	mp, shutdown, err := Init(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)
	require.NotNil(t, mp)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitInvalidEndpoint(t *testing.T) {
	_, _, err := Init(context.Background(), config.TelemetryConfig{OTLPEndpoint: "://bad"})
	require.Error(t, err)
}

func TestInitWithEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mp, shutdown, err := Init(context.Background(), config.TelemetryConfig{OTLPEndpoint: srv.URL, ServiceName: "host"})
	require.NoError(t, err)
	require.NotNil(t, mp)
	require.NoError(t, shutdown(context.Background()))
}

func TestMetricsRecordCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := NewMetrics(mp.Meter(MeterName))

	m.Operation("fetch_top_scores")
	m.Operation("fetch_top_scores")
	m.Signal("leaderboard_scores_loaded")
	m.StaleCompletion("fetch_top_scores")
	m.PlatformFailure("sign_in", "cancelled")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	totals := map[string]int64{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		sum, ok := md.Data.(metricdata.Sum[int64])
		require.True(t, ok, md.Name)
		for _, dp := range sum.DataPoints {
			totals[md.Name] += dp.Value
			if md.Name == "gameservices.platform_failures" {
				code, _ := dp.Attributes.Value(attribute.Key("code"))
				require.Equal(t, "cancelled", code.AsString())
			}
		}
	}
	require.Equal(t, int64(2), totals["gameservices.operations"])
	require.Equal(t, int64(1), totals["gameservices.signals"])
	require.Equal(t, int64(1), totals["gameservices.stale_completions"])
	require.Equal(t, int64(1), totals["gameservices.platform_failures"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Operation("x")
	m.Signal("y")
	m.StaleCompletion("z")
	m.PlatformFailure("a", "b")
}
