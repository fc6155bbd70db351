package retry

import "time"

// Budget is the outcome of a timeout budget adjustment.
type Budget struct {
	// Proceed is false when no time is left for another attempt.
	Proceed bool
	// Timeout replaces the request timeout for the next attempt.
	Timeout time.Duration
}

// AdjustTimeoutBudget computes what is left of timeout once the time since
// first and the upcoming delay are spent.
func AdjustTimeoutBudget(timeout time.Duration, first time.Time, delay time.Duration, now time.Time) Budget {
	// Compared rather than subtracted so a huge delay cannot wrap around.
	left := timeout - now.Sub(first)
	if left <= 0 || delay >= left {
		return Budget{}
	}
	return Budget{Proceed: true, Timeout: left - delay}
}
