package observability

import (
	"context"
	"fmt"
	"time"
)

// DefaultShutdownTimeout bounds flushing pending spans and retry metrics on exit.
const DefaultShutdownTimeout = 10 * time.Second

// Shutdown flushes and stops provider within timeout. A non-positive timeout
// means DefaultShutdownTimeout; a nil provider is a no-op.
func Shutdown(provider Provider, timeout time.Duration) error {
	if provider == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("observability shutdown failed: %w", err)
	}
	return nil
}

// MustShutdown is Shutdown for deferred calls in main; it panics on error.
func MustShutdown(provider Provider, timeout time.Duration) {
	if err := Shutdown(provider, timeout); err != nil {
		panic(err)
	}
}
