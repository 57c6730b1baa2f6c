package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeRemoteHost serves fixed bodies by path and counts GETs.
type FakeRemoteHost struct {
	server *httptest.Server

	mu     sync.Mutex
	bodies map[string][]byte
	hits   map[string]int
}

// NewFakeRemoteHost ...
func NewFakeRemoteHost(bodies map[string][]byte) *FakeRemoteHost {
	h := &FakeRemoteHost{bodies: bodies, hits: map[string]int{}}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.hits[r.URL.Path]++
		body, ok := h.bodies[r.URL.Path]
		h.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(body)
	}))
	return h
}

// URL ...
func (h *FakeRemoteHost) URL() string {
	return h.server.URL
}

// Hits returns how many times path was requested.
func (h *FakeRemoteHost) Hits(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

// Close ...
func (h *FakeRemoteHost) Close() {
	h.server.Close()
}
