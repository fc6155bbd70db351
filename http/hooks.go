package http

import (
	"slices"
	"sync"
)

type requestEntry struct {
	id   int
	hook RequestHook
}

type responseEntry struct {
	id        int
	onSuccess ResponseHook
	onError   ErrorHook
}

// Hooks is the registry of request and response hooks of a client.
// Hooks run in registration order. Registration is safe while requests are in
// flight; each attempt works on a snapshot taken when it starts.
type Hooks struct {
	mu       sync.RWMutex
	lastID   int
	request  []requestEntry
	response []responseEntry
}

// OnRequest registers a request hook and returns its handle.
func (h *Hooks) OnRequest(hook RequestHook) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	h.request = append(h.request, requestEntry{id: h.lastID, hook: hook})
	return h.lastID
}

// OnResponse registers a pair of response hooks and returns its handle.
// Either hook may be nil, in which case the outcome passes through unchanged.
func (h *Hooks) OnResponse(onSuccess ResponseHook, onError ErrorHook) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	h.response = append(h.response, responseEntry{id: h.lastID, onSuccess: onSuccess, onError: onError})
	return h.lastID
}

// RemoveRequest unregisters a request hook. It reports whether the handle was registered.
func (h *Hooks) RemoveRequest(id int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.request)
	h.request = slices.DeleteFunc(h.request, func(e requestEntry) bool { return e.id == id })
	return len(h.request) != n
}

// RemoveResponse unregisters a response hook pair. It reports whether the handle was registered.
func (h *Hooks) RemoveResponse(id int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.response)
	h.response = slices.DeleteFunc(h.response, func(e responseEntry) bool { return e.id == id })
	return len(h.response) != n
}

// Len returns the number of registered request and response hooks.
func (h *Hooks) Len() (requestHooks, responseHooks int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.request), len(h.response)
}

func (h *Hooks) snapshot() ([]requestEntry, []responseEntry) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.request), slices.Clone(h.response)
}
