package retry

import (
	"golang.org/x/time/rate"

	"github.com/gaborage/httpretry/config"
)

// FromConfig translates the retry section of the service configuration into
// binding options.
func FromConfig(cfg config.RetryConfig) []Option {
	opts := []Option{
		WithMaxAttempts(cfg.MaxAttempts),
		WithPreserveTimeoutBudget(cfg.PreserveTimeoutBudget),
	}

	switch cfg.Backoff.Strategy {
	case config.BackoffExponential:
		opts = append(opts, WithExponentialBackoff(cfg.Backoff.Base))
	default:
		opts = append(opts, WithDelay(NoDelay))
	}

	if cfg.RateLimit.Enabled {
		opts = append(opts, WithRetryRateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst)))
	}
	return opts
}
