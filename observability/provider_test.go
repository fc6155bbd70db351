package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(&Config{}, nil)
	require.NoError(t, err)

	assert.IsType(t, &noopProvider{}, p)
	assert.IsType(t, noop.TracerProvider{}, p.TracerProvider())
	assert.IsType(t, metricnoop.MeterProvider{}, p.MeterProvider())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderNilConfig(t *testing.T) {
	_, err := NewProvider(nil, nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestNewProviderInvalidConfig(t *testing.T) {
	_, err := NewProvider(&Config{Enabled: true}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingServiceName)
}

func TestNewProviderStdout(t *testing.T) {
	cfg := &Config{
		Enabled: true,
		Service: ServiceConfig{Name: "billing", Version: "v1.2.3"},
		Metrics: MetricsConfig{Interval: time.Hour},
	}

	p, err := NewProvider(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = Shutdown(p, time.Second) }()

	assert.IsType(t, &sdktrace.TracerProvider{}, p.TracerProvider())
	assert.IsType(t, &sdkmetric.MeterProvider{}, p.MeterProvider())
	assert.Nil(t, cfg.Trace.Enabled, "caller config must not be mutated")
}

func TestNewProviderTracingOnly(t *testing.T) {
	cfg := &Config{
		Enabled: true,
		Service: ServiceConfig{Name: "billing"},
		Metrics: MetricsConfig{Enabled: BoolPtr(false)},
	}

	p, err := NewProvider(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = Shutdown(p, time.Second) }()

	assert.IsType(t, &sdktrace.TracerProvider{}, p.TracerProvider())
	assert.IsType(t, metricnoop.MeterProvider{}, p.MeterProvider())
}

func TestNewProviderOTLPExporters(t *testing.T) {
	tests := []struct {
		name     string
		protocol string
		endpoint string
	}{
		{"http", ProtocolHTTP, "http://127.0.0.1:4318"},
		{"grpc", ProtocolGRPC, "127.0.0.1:4317"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Enabled:     true,
				Service:     ServiceConfig{Name: "billing"},
				Environment: "production",
				Trace: TraceConfig{
					Endpoint: tt.endpoint,
					Protocol: tt.protocol,
					Insecure: true,
					Headers:  map[string]string{"api-key": "secret"},
				},
				Metrics: MetricsConfig{Endpoint: tt.endpoint, Interval: time.Hour},
			}

			// Exporters connect lazily, so construction succeeds without a collector.
			p, err := NewProvider(cfg, nil)
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_ = p.Shutdown(ctx)
		})
	}
}

func TestMustNewProviderPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustNewProvider(&Config{Enabled: true}, nil)
	})
	assert.NotPanics(t, func() {
		MustNewProvider(&Config{}, nil)
	})
}

func TestShutdownHelpers(t *testing.T) {
	assert.NoError(t, Shutdown(nil, 0))
	assert.NoError(t, Shutdown(newNoopProvider(), 0))
	assert.NotPanics(t, func() {
		MustShutdown(newNoopProvider(), time.Second)
	})
}

func TestCreateInstruments(t *testing.T) {
	meter := metricnoop.NewMeterProvider().Meter("test")

	counter, err := CreateCounter(meter, "http.client.retry.attempts", "Retries issued")
	require.NoError(t, err)
	assert.NotNil(t, counter)

	histogram, err := CreateHistogram(meter, "http.client.retry.delay", "Retry delay")
	require.NoError(t, err)
	assert.NotNil(t, histogram)

	gauge, err := CreateUpDownCounter(meter, "http.client.retry.pending", "Pending retries")
	require.NoError(t, err)
	assert.NotNil(t, gauge)
}
