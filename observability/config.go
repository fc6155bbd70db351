package observability

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that outputs to stdout (for local development).
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// CompressionGzip specifies gzip compression for OTLP export.
	CompressionGzip = "gzip"

	// CompressionNone specifies no compression for OTLP export.
	CompressionNone = "none"

	// EnvironmentDevelopment is the default environment name for development mode.
	EnvironmentDevelopment = "development"

	// ConfigPath is the key under which the observability section lives in config files.
	ConfigPath = "observability"
)

// BoolPtr returns a pointer to the provided bool value.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to the provided float64 value.
func Float64Ptr(v float64) *float64 {
	return &v
}

func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	maps.Copy(clone, headers)
	return clone
}

// Unmarshaler decodes a configuration section by key path.
// *config.Config satisfies it.
type Unmarshaler interface {
	Unmarshal(path string, out any) error
}

// LoadConfig reads the observability section from src.
// Defaults are applied by NewProvider, not here, so explicit zero values survive.
func LoadConfig(src Unmarshaler) (*Config, error) {
	var cfg Config
	if err := src.Unmarshal(ConfigPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load observability config: %w", err)
	}
	return &cfg, nil
}

// Config defines the configuration for tracing and metrics export.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, NewProvider returns no-op providers.
	Enabled bool `mapstructure:"enabled"`

	Service ServiceConfig `mapstructure:"service"`

	// Environment indicates the deployment environment (e.g., production, staging, development).
	Environment string `mapstructure:"environment"`

	Trace   TraceConfig   `mapstructure:"trace"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServiceConfig contains service identification metadata.
type ServiceConfig struct {
	// Name identifies the service in traces and metrics.
	// This is required when observability is enabled.
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// TraceConfig defines configuration for distributed tracing.
type TraceConfig struct {
	// Enabled: nil = apply default (true when observability is enabled), false = explicitly disabled.
	Enabled *bool `mapstructure:"enabled"`

	// Endpoint is "stdout" or an OTLP endpoint.
	// HTTP endpoints carry a scheme (http://localhost:4318), gRPC endpoints do not (localhost:4317).
	Endpoint string `mapstructure:"endpoint"`

	// Protocol is "http" or "grpc". Ignored for stdout.
	Protocol string `mapstructure:"protocol"`

	// Insecure disables TLS for OTLP endpoints.
	Insecure bool `mapstructure:"insecure"`

	// Headers are sent with every export request, typically for authentication.
	Headers map[string]string `mapstructure:"headers"`

	// Compression is "gzip" or "none".
	Compression string `mapstructure:"compression"`

	Sample SampleConfig `mapstructure:"sample"`
	Batch  BatchConfig  `mapstructure:"batch"`
	Export ExportConfig `mapstructure:"export"`
	Max    MaxConfig    `mapstructure:"max"`
}

// SampleConfig defines sampling configuration for traces.
type SampleConfig struct {
	// Rate is the fraction of traces to record (0.0 to 1.0).
	// nil = apply default (1.0), explicit value = use that value (including 0.0).
	Rate *float64 `mapstructure:"rate"`
}

// BatchConfig defines batch processing configuration for traces.
type BatchConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ExportConfig defines export timeout configuration.
type ExportConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// MaxConfig defines maximum queue and batch size limits.
type MaxConfig struct {
	Queue QueueConfig    `mapstructure:"queue"`
	Batch MaxBatchConfig `mapstructure:"batch"`
}

// QueueConfig defines queue size configuration.
type QueueConfig struct {
	Size int `mapstructure:"size"`
}

// MaxBatchConfig defines batch size configuration.
type MaxBatchConfig struct {
	Size int `mapstructure:"size"`
}

// MetricsConfig defines configuration for metrics collection.
type MetricsConfig struct {
	// Enabled: nil = apply default (true when observability is enabled), false = explicitly disabled.
	Enabled *bool `mapstructure:"enabled"`

	Endpoint string `mapstructure:"endpoint"`

	// Protocol falls back to the trace protocol when empty.
	Protocol string `mapstructure:"protocol"`

	// Insecure falls back to the trace setting when unset.
	Insecure *bool `mapstructure:"insecure"`

	// Headers fall back to the trace headers when empty.
	Headers map[string]string `mapstructure:"headers"`

	Compression string `mapstructure:"compression"`

	// Interval is how often the periodic reader exports.
	Interval time.Duration `mapstructure:"interval"`

	Export ExportConfig `mapstructure:"export"`
}

// ApplyDefaults sets default values for any config fields that are not specified.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}

	c.applyTraceDefaults()
	c.applyMetricsDefaults()
}

func (c *Config) applyTraceDefaults() {
	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Enabled && c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.Endpoint == EndpointStdout {
		c.Trace.Insecure = true
	}
	if c.Trace.Compression == "" {
		c.Trace.Compression = CompressionGzip
	}
	if c.Trace.Sample.Rate == nil {
		c.Trace.Sample.Rate = Float64Ptr(1.0)
	}

	dev := c.isDevelopment(c.Trace.Endpoint)
	if c.Trace.Batch.Timeout == 0 {
		// Development: near-instant span visibility. Production: efficient batching.
		c.Trace.Batch.Timeout = pick(dev, 500*time.Millisecond, 5*time.Second)
	}
	if c.Trace.Export.Timeout == 0 {
		c.Trace.Export.Timeout = pick(dev, 10*time.Second, 60*time.Second)
	}
	if c.Trace.Max.Queue.Size == 0 {
		c.Trace.Max.Queue.Size = 2048
	}
	if c.Trace.Max.Batch.Size == 0 {
		c.Trace.Max.Batch.Size = 512
	}
}

func (c *Config) applyMetricsDefaults() {
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = EndpointStdout
	}
	if c.Enabled && c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Protocol == "" {
		c.Metrics.Protocol = c.Trace.Protocol
	}
	if c.Metrics.Insecure == nil {
		c.Metrics.Insecure = BoolPtr(c.Trace.Insecure)
	}
	if len(c.Metrics.Headers) == 0 {
		c.Metrics.Headers = cloneHeaderMap(c.Trace.Headers)
	}
	if c.Metrics.Compression == "" {
		c.Metrics.Compression = CompressionGzip
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 10 * time.Second
	}
	if c.Metrics.Export.Timeout == 0 {
		c.Metrics.Export.Timeout = pick(c.isDevelopment(c.Metrics.Endpoint), 10*time.Second, 60*time.Second)
	}
}

func (c *Config) isDevelopment(endpoint string) bool {
	return c.Environment == EnvironmentDevelopment || endpoint == EndpointStdout
}

func pick(dev bool, devValue, prodValue time.Duration) time.Duration {
	if dev {
		return devValue
	}
	return prodValue
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if err := c.validateTraceConfig(); err != nil {
		return err
	}
	return c.validateMetricsConfig()
}

func (c *Config) validateTraceConfig() error {
	if c.Trace.Sample.Rate != nil {
		rate := *c.Trace.Sample.Rate
		if rate < 0.0 || rate > 1.0 {
			return ErrInvalidSampleRate
		}
	}
	if err := validateCompression(c.Trace.Compression); err != nil {
		return err
	}
	return validateEndpoint(c.Trace.Endpoint, c.Trace.Protocol)
}

func (c *Config) validateMetricsConfig() error {
	if c.Metrics.Enabled == nil || !*c.Metrics.Enabled {
		return nil
	}
	if err := validateCompression(c.Metrics.Compression); err != nil {
		return err
	}
	protocol := c.Metrics.Protocol
	if protocol == "" {
		protocol = c.Trace.Protocol
	}
	return validateEndpoint(c.Metrics.Endpoint, protocol)
}

func validateCompression(compression string) error {
	switch compression {
	case "", CompressionGzip, CompressionNone:
		return nil
	default:
		return ErrInvalidCompression
	}
}

// validateEndpoint checks the protocol and that the endpoint format matches it.
func validateEndpoint(endpoint, protocol string) error {
	if endpoint == EndpointStdout || endpoint == "" {
		return nil
	}
	if protocol == "" {
		protocol = ProtocolHTTP
	}

	hasScheme := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
	switch protocol {
	case ProtocolGRPC:
		if hasScheme {
			return ErrInvalidEndpointFormat
		}
	case ProtocolHTTP:
		if !hasScheme {
			return ErrInvalidEndpointFormat
		}
	default:
		return ErrInvalidProtocol
	}
	return nil
}
