package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config represents the configuration of a service using the retrying HTTP client.
// The embedded koanf.Koanf instance allows sections owned by other packages
// (e.g. observability) to be unmarshaled on demand via Unmarshal.
type Config struct {
	App   AppConfig   `koanf:"app" json:"app" yaml:"app" mapstructure:"app"`
	Log   LogConfig   `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	HTTP  HTTPConfig  `koanf:"http" json:"http" yaml:"http" mapstructure:"http"`
	Retry RetryConfig `koanf:"retry" json:"retry" yaml:"retry" mapstructure:"retry"`

	// k holds the underlying Koanf instance for flexible access to custom configurations
	k *koanf.Koanf `json:"-" yaml:"-" mapstructure:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" mapstructure:"version" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" mapstructure:"env" validate:"oneof=development staging production"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error fatal"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// HTTPConfig holds outbound HTTP client settings.
type HTTPConfig struct {
	// Timeout bounds a single request; retries may shrink it (see RetryConfig.PreserveTimeoutBudget).
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	// Headers are sent with every request unless the request overrides them.
	Headers map[string]string `koanf:"headers" json:"headers" yaml:"headers" mapstructure:"headers"`
	// LogPayloads enables debug-level logging of headers and bodies.
	LogPayloads bool `koanf:"logpayloads" json:"logpayloads" yaml:"logpayloads" mapstructure:"logpayloads"`
	// MaxPayloadLogBytes caps logged body bytes when LogPayloads is enabled.
	MaxPayloadLogBytes int `koanf:"maxpayloadlogbytes" json:"maxpayloadlogbytes" yaml:"maxpayloadlogbytes" mapstructure:"maxpayloadlogbytes" validate:"gte=0"`
	// TraceIDHeader names the header used for request-id propagation.
	TraceIDHeader string `koanf:"traceidheader" json:"traceidheader" yaml:"traceidheader" mapstructure:"traceidheader"`
	// Tracing wraps the transport with OpenTelemetry client spans.
	Tracing bool `koanf:"tracing" json:"tracing" yaml:"tracing" mapstructure:"tracing"`
}

// RetryConfig holds client-instance retry defaults.
type RetryConfig struct {
	// MaxAttempts is the number of retries after the original attempt.
	MaxAttempts int `koanf:"maxattempts" json:"maxattempts" yaml:"maxattempts" mapstructure:"maxattempts" validate:"gte=0,lte=100"`
	// PreserveTimeoutBudget leaves the request timeout untouched across retries.
	PreserveTimeoutBudget bool            `koanf:"preservetimeoutbudget" json:"preservetimeoutbudget" yaml:"preservetimeoutbudget" mapstructure:"preservetimeoutbudget"`
	Backoff               BackoffConfig   `koanf:"backoff" json:"backoff" yaml:"backoff" mapstructure:"backoff"`
	RateLimit             RateLimitConfig `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit" mapstructure:"ratelimit"`
}

// BackoffConfig selects the delay between retries.
type BackoffConfig struct {
	// Strategy is "none" (immediate resubmission) or "exponential".
	Strategy string `koanf:"strategy" json:"strategy" yaml:"strategy" mapstructure:"strategy" validate:"oneof=none exponential"`
	// Base is the exponential base factor; the first retry waits about 2*Base.
	Base time.Duration `koanf:"base" json:"base" yaml:"base" mapstructure:"base" validate:"gte=0"`
}

// RateLimitConfig caps how many retries a client may issue per second across all requests.
type RateLimitConfig struct {
	Enabled   bool    `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	PerSecond float64 `koanf:"persecond" json:"persecond" yaml:"persecond" mapstructure:"persecond" validate:"gte=0"`
	Burst     int     `koanf:"burst" json:"burst" yaml:"burst" mapstructure:"burst" validate:"gte=0"`
}
