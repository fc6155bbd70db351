package retry

import "github.com/gaborage/httpretry/http"

// Handle identifies the hooks registered by Bind.
type Handle struct {
	RequestHookID  int
	ResponseHookID int
}

// Bind makes client retry failed requests according to opts, on top of
// DefaultPolicy. It registers a request hook that attaches retry state to
// every request and an error hook that runs the retry decision.
func Bind(client http.Client, opts ...Option) Handle {
	o := newOptions(opts...)
	e := newEngine(client, o, opts)

	hooks := client.Hooks()
	return Handle{
		RequestHookID:  hooks.OnRequest(e.onRequest),
		ResponseHookID: hooks.OnResponse(nil, e.onError),
	}
}

// Unbind removes the hooks of h from client. Requests already waiting to be
// retried still complete. It reports whether both hooks were registered.
func Unbind(client http.Client, h Handle) bool {
	hooks := client.Hooks()
	removedRequest := hooks.RemoveRequest(h.RequestHookID)
	removedResponse := hooks.RemoveResponse(h.ResponseHookID)
	return removedRequest && removedResponse
}
