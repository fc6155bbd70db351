package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendOrder(tag string) RequestHook {
	return func(ctx context.Context, req *Request) (context.Context, error) {
		req.Headers[testOrderHeader] += tag
		return ctx, nil
	}
}

func TestHooksHandles(t *testing.T) {
	hooks := &Hooks{}

	reqID := hooks.OnRequest(appendOrder("a"))
	respID := hooks.OnResponse(nil, nil)
	otherID := hooks.OnRequest(appendOrder("b"))

	assert.Equal(t, 1, reqID)
	assert.Equal(t, 2, respID)
	assert.Equal(t, 3, otherID)

	assert.False(t, hooks.RemoveRequest(respID), "handles are not shared across hook kinds")
	assert.True(t, hooks.RemoveRequest(reqID))
	assert.False(t, hooks.RemoveRequest(reqID))
	assert.True(t, hooks.RemoveResponse(respID))

	requestHooks, responseHooks := hooks.Len()
	assert.Equal(t, 1, requestHooks)
	assert.Equal(t, 0, responseHooks)

	assert.Equal(t, 4, hooks.OnResponse(nil, nil), "handles are never reused")
}

func TestRequestHooks(t *testing.T) {
	log := createTestLogger()

	t.Run("run in registration order", func(t *testing.T) {
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			assert.Equal(t, "abc", r.Header.Get(testOrderHeader))
			w.WriteHeader(nethttp.StatusOK)
		}))
		defer server.Close()

		client := NewBuilder(log).
			WithRequestHook(appendOrder("a")).
			WithRequestHook(appendOrder("b")).
			Build()
		client.Hooks().OnRequest(appendOrder("c"))

		_, err := client.Get(context.Background(), &Request{URL: server.URL})
		require.NoError(t, err)
	})

	t.Run("removed hook no longer runs", func(t *testing.T) {
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			assert.Empty(t, r.Header.Get(testIntercepted))
			w.WriteHeader(nethttp.StatusOK)
		}))
		defer server.Close()

		client := NewClient(log)
		id := client.Hooks().OnRequest(func(ctx context.Context, req *Request) (context.Context, error) {
			req.Headers[testIntercepted] = "true"
			return ctx, nil
		})
		require.True(t, client.Hooks().RemoveRequest(id))

		_, err := client.Get(context.Background(), &Request{URL: server.URL})
		require.NoError(t, err)
	})

	t.Run("error aborts without response hooks", func(t *testing.T) {
		var sent, hookCalled atomic.Bool
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			sent.Store(true)
			w.WriteHeader(nethttp.StatusOK)
		}))
		defer server.Close()

		client := NewBuilder(log).
			WithRequestHook(func(context.Context, *Request) (context.Context, error) {
				return nil, errors.New("boom")
			}).
			WithResponseHook(nil, func(_ context.Context, _ *Request, err error) (*Response, error) {
				hookCalled.Store(true)
				return nil, err
			}).
			Build()

		resp, err := client.Get(context.Background(), &Request{URL: server.URL})
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.True(t, IsErrorType(err, InterceptorError))
		assert.ErrorContains(t, err, "boom")
		assert.False(t, sent.Load())
		assert.False(t, hookCalled.Load())
	})

	t.Run("returned context reaches response hooks", func(t *testing.T) {
		type ctxKey struct{}
		server := newIPv4TestServer(t, okHandler())
		defer server.Close()

		var seen any
		client := NewBuilder(log).
			WithRequestHook(func(ctx context.Context, _ *Request) (context.Context, error) {
				return context.WithValue(ctx, ctxKey{}, "tagged"), nil
			}).
			WithResponseHook(func(ctx context.Context, _ *Request, resp *Response) (*Response, error) {
				seen = ctx.Value(ctxKey{})
				return resp, nil
			}, nil).
			Build()

		_, err := client.Get(context.Background(), &Request{URL: server.URL})
		require.NoError(t, err)
		assert.Equal(t, "tagged", seen)
	})
}

func TestResponseHooks(t *testing.T) {
	log := createTestLogger()

	t.Run("success hooks chain in order", func(t *testing.T) {
		server := newIPv4TestServer(t, okHandler())
		defer server.Close()

		tag := func(suffix string) ResponseHook {
			return func(_ context.Context, _ *Request, resp *Response) (*Response, error) {
				resp.Body = append(resp.Body, suffix...)
				return resp, nil
			}
		}

		client := NewBuilder(log).
			WithResponseHook(tag("-1"), nil).
			WithResponseHook(tag("-2"), nil).
			Build()

		resp, err := client.Get(context.Background(), &Request{URL: server.URL})
		require.NoError(t, err)
		assert.Equal(t, "ok-1-2", string(resp.Body))
	})

	t.Run("success hook error reaches later error hooks", func(t *testing.T) {
		server := newIPv4TestServer(t, okHandler())
		defer server.Close()

		var received error
		client := NewBuilder(log).
			WithResponseHook(func(context.Context, *Request, *Response) (*Response, error) {
				return nil, errors.New("rejected payload")
			}, nil).
			WithResponseHook(nil, func(_ context.Context, _ *Request, err error) (*Response, error) {
				received = err
				return nil, err
			}).
			Build()

		_, err := client.Get(context.Background(), &Request{URL: server.URL})
		require.Error(t, err)
		assert.EqualError(t, received, "rejected payload")
	})

	t.Run("error hook recovers the request", func(t *testing.T) {
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			w.WriteHeader(nethttp.StatusBadGateway)
		}))
		defer server.Close()

		client := NewBuilder(log).
			WithResponseHook(nil, func(_ context.Context, req *Request, err error) (*Response, error) {
				if IsHTTPStatusError(err, nethttp.StatusBadGateway) {
					return &Response{StatusCode: nethttp.StatusOK, Body: []byte("fallback"), Request: req}, nil
				}
				return nil, err
			}).
			Build()

		resp, err := client.Get(context.Background(), &Request{URL: server.URL})
		require.NoError(t, err)
		assert.Equal(t, "fallback", string(resp.Body))
	})

	t.Run("error hook receives the prepared request", func(t *testing.T) {
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			w.WriteHeader(nethttp.StatusInternalServerError)
		}))
		defer server.Close()

		var hookReq *Request
		client := NewBuilder(log).
			WithResponseHook(nil, func(_ context.Context, req *Request, err error) (*Response, error) {
				hookReq = req
				return nil, err
			}).
			Build()

		resp, err := client.Get(context.Background(), &Request{URL: server.URL})
		require.Error(t, err)
		require.NotNil(t, hookReq)
		assert.Same(t, hookReq, resp.Request)
		assert.Equal(t, nethttp.MethodGet, hookReq.Method)
	})
}

func TestResend(t *testing.T) {
	log := createTestLogger()

	t.Run("error hook resends through the full chain", func(t *testing.T) {
		var calls atomic.Int32
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(nethttp.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(nethttp.StatusOK)
			w.Write([]byte("recovered"))
		}))
		defer server.Close()

		var requestHookRuns atomic.Int32
		var resent atomic.Bool
		client := NewClient(log)
		client.Hooks().OnRequest(func(ctx context.Context, _ *Request) (context.Context, error) {
			requestHookRuns.Add(1)
			return ctx, nil
		})
		client.Hooks().OnResponse(nil, func(ctx context.Context, req *Request, err error) (*Response, error) {
			if resent.CompareAndSwap(false, true) {
				return client.Resend(ctx, req)
			}
			return nil, err
		})

		resp, err := client.Get(context.Background(), &Request{URL: server.URL})
		require.NoError(t, err)
		assert.Equal(t, "recovered", string(resp.Body))
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, int32(2), requestHookRuns.Load())
	})

	t.Run("unprepared request behaves like Do", func(t *testing.T) {
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			assert.Equal(t, nethttp.MethodPut, r.Method)
			assert.Equal(t, testAPIValue, r.Header.Get(testAPIKey))
			w.WriteHeader(nethttp.StatusOK)
		}))
		defer server.Close()

		client := NewBuilder(log).WithDefaultHeader(testAPIKey, testAPIValue).Build()
		resp, err := client.Resend(context.Background(), &Request{Method: nethttp.MethodPut, URL: server.URL})
		require.NoError(t, err)
		assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	})

	t.Run("resend uses the adjusted timeout", func(t *testing.T) {
		server := newIPv4TestServer(t, okHandler())
		defer server.Close()

		client := NewClient(log)
		resp, err := client.Get(context.Background(), &Request{URL: server.URL})
		require.NoError(t, err)

		req := resp.Request
		req.Timeout = 1
		_, err = client.Resend(context.Background(), req)
		require.Error(t, err)
		assert.True(t, IsErrorType(err, TimeoutError))
	})
}
