package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsEnabled(t *testing.T) {
	cfg := Config{Enabled: true, Service: ServiceConfig{Name: "billing"}}
	cfg.ApplyDefaults()

	assert.Equal(t, "unknown", cfg.Service.Version)
	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)

	require.NotNil(t, cfg.Trace.Enabled)
	assert.True(t, *cfg.Trace.Enabled)
	assert.Equal(t, EndpointStdout, cfg.Trace.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Trace.Protocol)
	assert.True(t, cfg.Trace.Insecure)
	assert.Equal(t, CompressionGzip, cfg.Trace.Compression)
	require.NotNil(t, cfg.Trace.Sample.Rate)
	assert.InDelta(t, 1.0, *cfg.Trace.Sample.Rate, 0.0001)
	assert.Equal(t, 500*time.Millisecond, cfg.Trace.Batch.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Trace.Export.Timeout)
	assert.Equal(t, 2048, cfg.Trace.Max.Queue.Size)
	assert.Equal(t, 512, cfg.Trace.Max.Batch.Size)

	require.NotNil(t, cfg.Metrics.Enabled)
	assert.True(t, *cfg.Metrics.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Metrics.Interval)
	assert.Equal(t, ProtocolHTTP, cfg.Metrics.Protocol)
}

func TestApplyDefaultsProductionTimeouts(t *testing.T) {
	cfg := Config{
		Enabled:     true,
		Environment: "production",
		Trace:       TraceConfig{Endpoint: "https://otlp.example.com:4318"},
		Metrics:     MetricsConfig{Endpoint: "https://otlp.example.com:4318"},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, 5*time.Second, cfg.Trace.Batch.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Trace.Export.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Metrics.Export.Timeout)
	assert.False(t, cfg.Trace.Insecure)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Trace: TraceConfig{
			Enabled: BoolPtr(false),
			Sample:  SampleConfig{Rate: Float64Ptr(0)},
			Headers: map[string]string{"api-key": "secret"},
		},
		Metrics: MetricsConfig{Enabled: BoolPtr(false)},
	}
	cfg.ApplyDefaults()

	assert.False(t, *cfg.Trace.Enabled)
	assert.False(t, *cfg.Metrics.Enabled)
	assert.Zero(t, *cfg.Trace.Sample.Rate)
	assert.Equal(t, "secret", cfg.Metrics.Headers["api-key"])

	cfg.Metrics.Headers["api-key"] = "changed"
	assert.Equal(t, "secret", cfg.Trace.Headers["api-key"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{"nil config", nil, ErrNilConfig},
		{"disabled skips checks", &Config{Trace: TraceConfig{Protocol: "ftp"}}, nil},
		{"missing service name", &Config{Enabled: true}, ErrMissingServiceName},
		{
			"sample rate out of range",
			&Config{Enabled: true, Service: ServiceConfig{Name: "svc"}, Trace: TraceConfig{Sample: SampleConfig{Rate: Float64Ptr(1.5)}}},
			ErrInvalidSampleRate,
		},
		{
			"unknown compression",
			&Config{Enabled: true, Service: ServiceConfig{Name: "svc"}, Trace: TraceConfig{Compression: "zstd"}},
			ErrInvalidCompression,
		},
		{
			"unknown protocol",
			&Config{Enabled: true, Service: ServiceConfig{Name: "svc"}, Trace: TraceConfig{Endpoint: "localhost:4317", Protocol: "ftp"}},
			ErrInvalidProtocol,
		},
		{
			"grpc endpoint with scheme",
			&Config{Enabled: true, Service: ServiceConfig{Name: "svc"}, Trace: TraceConfig{Endpoint: "http://localhost:4317", Protocol: ProtocolGRPC}},
			ErrInvalidEndpointFormat,
		},
		{
			"http endpoint without scheme",
			&Config{Enabled: true, Service: ServiceConfig{Name: "svc"}, Trace: TraceConfig{Endpoint: "localhost:4318", Protocol: ProtocolHTTP}},
			ErrInvalidEndpointFormat,
		},
		{
			"metrics inherit trace protocol",
			&Config{
				Enabled: true,
				Service: ServiceConfig{Name: "svc"},
				Trace:   TraceConfig{Protocol: ProtocolGRPC},
				Metrics: MetricsConfig{Enabled: BoolPtr(true), Endpoint: "https://otlp.example.com"},
			},
			ErrInvalidEndpointFormat,
		},
		{
			"valid grpc",
			&Config{Enabled: true, Service: ServiceConfig{Name: "svc"}, Trace: TraceConfig{Endpoint: "localhost:4317", Protocol: ProtocolGRPC}},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type stubUnmarshaler struct {
	err error
}

func (s stubUnmarshaler) Unmarshal(path string, out any) error {
	if s.err != nil {
		return s.err
	}
	cfg := out.(*Config)
	cfg.Enabled = path == ConfigPath
	cfg.Service.Name = "billing"
	return nil
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(stubUnmarshaler{})
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "billing", cfg.Service.Name)

	_, err = LoadConfig(stubUnmarshaler{err: errors.New("boom")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load observability config")
}
