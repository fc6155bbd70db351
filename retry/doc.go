// Package retry transparently retries failed requests of an http.Client.
//
// Bind registers two hooks on a client. The request hook attaches a State to
// every request: the attempt count, when the request was first seen and the
// Policy resolved for it. The error hook decides what to do with a failure:
//
//   - cancellations are returned immediately;
//   - a request that is eligible (attempts left and Condition true) is retried
//     through Client.Resend after Delay, with its timeout reduced to what is
//     left of the original one unless PreserveTimeoutBudget is set;
//   - otherwise the original error is returned, and OnExhausted runs when the
//     request ran out of attempts.
//
// Policies are layered. WithRequestOptions overrides the options given to
// Bind, which override DefaultPolicy:
//
//	retry.Bind(client, retry.WithMaxAttempts(5), retry.WithExponentialBackoff(100*time.Millisecond))
//
//	ctx = retry.WithRequestOptions(ctx, retry.WithMaxAttempts(1))
//	resp, err := client.Put(ctx, req)
//
// The default condition retries transient network errors for every method,
// and 5xx responses or missing responses for idempotent methods only.
// Certificate errors are never retried.
package retry
