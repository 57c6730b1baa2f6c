// Package testutil holds fakes and assertions shared by the package tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Request is one call observed by FakeObjectStore.
type Request struct {
	Method        string
	Path          string
	ContentType   string
	Authorization string
	ContentSHA256 string
	AmzDate       string
}

// FakeObjectStore is an in-memory S3-compatible endpoint that answers path-style HEAD and PUT.
type FakeObjectStore struct {
	server *httptest.Server

	mu        sync.Mutex
	objects   map[string][]byte
	requests  []Request
	putStatus int
	putBody   string
	headFail  bool
}

// NewFakeObjectStore starts the server; call Close when done.
func NewFakeObjectStore() *FakeObjectStore {
	f := &FakeObjectStore{objects: map[string][]byte{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// URL is the endpoint of the fake store.
func (f *FakeObjectStore) URL() string {
	return f.server.URL
}

// Close ...
func (f *FakeObjectStore) Close() {
	f.server.Close()
}

// FailPuts makes every following PUT answer with status and body.
func (f *FakeObjectStore) FailPuts(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putStatus = status
	f.putBody = body
}

// FailHeads makes every following HEAD answer with 500.
func (f *FakeObjectStore) FailHeads() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headFail = true
}

// Seed stores an object without recording a request.
func (f *FakeObjectStore) Seed(path string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = content
}

// Object returns the stored bytes at path (e.g. /bucket/key).
func (f *FakeObjectStore) Object(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.objects[path]
	return content, ok
}

// Requests returns a copy of every observed request.
func (f *FakeObjectStore) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// Count returns the number of observed requests with the given method.
func (f *FakeObjectStore) Count(method string) int {
	count := 0
	for _, r := range f.Requests() {
		if r.Method == method {
			count++
		}
	}
	return count
}

func (f *FakeObjectStore) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		ContentType:   r.Header.Get("Content-Type"),
		Authorization: r.Header.Get("Authorization"),
		ContentSHA256: r.Header.Get("X-Amz-Content-Sha256"),
		AmzDate:       r.Header.Get("X-Amz-Date"),
	})

	switch r.Method {
	case http.MethodHead:
		if f.headFail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if _, ok := f.objects[r.URL.Path]; ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case http.MethodPut:
		if f.putStatus != 0 {
			w.WriteHeader(f.putStatus)
			_, _ = io.Copy(w, strings.NewReader(f.putBody))
			return
		}
		f.objects[r.URL.Path] = body
		w.Header().Set("ETag", `"fake"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
