package retry

import (
	"context"
	"time"

	"github.com/gaborage/httpretry/http"
)

// State is the retry bookkeeping of one logical request, including all its
// retries. It belongs to a single prepared *http.Request.
type State struct {
	// Attempt counts retries issued so far. The original attempt is 0.
	Attempt int
	// FirstAttempt is when the request was first seen.
	FirstAttempt time.Time
	// Budget is the request timeout when it was first seen. Retries share it
	// unless the policy preserves the timeout budget.
	Budget time.Duration
	// Policy was resolved when the request was first seen and does not change.
	Policy Policy

	owner *http.Request
}

// stateKey holds the state most recently attached by any binding.
type stateKey struct{}

// bindingKey holds the state attached by one resolver, so two bindings on the
// same client never share counters or policy.
type bindingKey struct{ resolver *Resolver }

// StateFromContext returns the retry state attached to ctx by a bound client.
// With several bindings on one client it is the state of the binding whose
// request hook ran last.
func StateFromContext(ctx context.Context) (*State, bool) {
	s, ok := ctx.Value(stateKey{}).(*State)
	return s, ok
}

// Resolver merges the library defaults, the binding options and the
// per-request options of a context into a Policy, in increasing precedence.
type Resolver struct {
	instance []Option
	clock    Clock
}

// NewResolver returns a resolver for the given binding options.
func NewResolver(clock Clock, instance ...Option) *Resolver {
	if clock == nil {
		clock = systemClock{}
	}
	return &Resolver{instance: instance, clock: clock}
}

// Policy returns the effective policy for a request issued with ctx.
func (r *Resolver) Policy(ctx context.Context) Policy {
	o := &options{policy: DefaultPolicy()}
	for _, opt := range r.instance {
		opt(o)
	}
	for _, opt := range requestOptions(ctx) {
		opt(o)
	}
	return o.policy.normalized()
}

// Resolve returns the state of req. The first time req is seen a new state is
// attached to the returned context. When ctx already carries the state of req
// it is returned unchanged, so resolving again never resets the counters.
// State attached for another request is ignored.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (context.Context, *State) {
	if s, ok := ctx.Value(bindingKey{r}).(*State); ok && s.owner == req {
		return ctx, s
	}
	s := &State{
		FirstAttempt: r.clock.Now(),
		Budget:       req.Timeout,
		Policy:       r.Policy(ctx),
		owner:        req,
	}
	ctx = context.WithValue(ctx, bindingKey{r}, s)
	return context.WithValue(ctx, stateKey{}, s), s
}
