// Package testutil holds helpers shared by package tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// EngineRequest is a request recorded by FakeEngine.
type EngineRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

type engineResponse struct {
	status int
	body   string
}

// FakeEngine is an httptest server answering canned engine responses.
// Requests without a canned response get a 404.
type FakeEngine struct {
	Server *httptest.Server

	mu       sync.Mutex
	routes   map[string]engineResponse
	requests []EngineRequest
}

func NewFakeEngine(t testing.TB) *FakeEngine {
	t.Helper()
	f := &FakeEngine{routes: make(map[string]engineResponse)}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// Address is the engine base address to hand to the adapter.
func (f *FakeEngine) Address() string {
	return f.Server.URL
}

// Handle sets the response for method and path.
func (f *FakeEngine) Handle(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = engineResponse{status: status, body: body}
}

func (f *FakeEngine) Requests() []EngineRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EngineRequest(nil), f.requests...)
}

// Paths returns "METHOD /path" for every recorded request, in order.
func (f *FakeEngine) Paths() []string {
	var out []string
	for _, r := range f.Requests() {
		out = append(out, r.Method+" "+r.Path)
	}
	return out
}

func (f *FakeEngine) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, EngineRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
	})
	resp, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"No such container"}`)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	io.WriteString(w, resp.body)
}
