// Package upstreamtest provides a recording fake of the upstream API for
// tests.
package upstreamtest

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/player-console/internal/upstream"
)

// Call is one request the fake received
type Call struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Server is a fake upstream API. Unregistered routes answer 404.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	calls    []Call
}

// New starts a fake upstream that is closed when the test ends
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{handlers: make(map[string]http.HandlerFunc)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	h, ok := s.handlers[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if !ok {
		Respond(http.StatusNotFound, `{"message":"not found"}`)(w, r)
		return
	}
	h(w, r)
}

// Respond returns a handler writing a fixed status and JSON body
func Respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

// Gated returns a handler that waits for gate to close before responding.
// It gives up when the client goes away.
func Gated(gate <-chan struct{}, status int, body string) http.HandlerFunc {
	respond := Respond(status, body)
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-gate:
			respond(w, r)
		case <-r.Context().Done():
		}
	}
}

// Handle registers a fixed response for method and path
func (s *Server) Handle(method, path string, status int, body string) {
	s.HandleFunc(method, path, Respond(status, body))
}

// HandleFunc registers a handler for method and path
func (s *Server) HandleFunc(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method+" "+path] = h
}

// Calls returns a copy of every request received so far
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many requests matched method and path
func (s *Server) CallCount(method, path string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Client returns an upstream client pointed at the fake
func (s *Server) Client() *upstream.Client {
	return upstream.NewClient(s.URL, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}
