// Package fakejira runs an in-process stand-in for the remote service. Tests
// register the endpoints they need and inspect the requests that were made.
package fakejira

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

const RestRoot string = "/rest/api/2"

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// JSONBody decodes the recorded request body into a generic object.
func (r Request) JSONBody() map[string]any {
	obj := map[string]any{}
	_ = json.Unmarshal(r.Body, &obj)
	return obj
}

type Server struct {
	srv    *httptest.Server
	router *chi.Mux

	mu       sync.Mutex
	requests []Request
	policy   *policy
}

// New starts a fake service that is closed when the test ends. Every setup
// function is handed the router mounted at the REST root.
func New(t testing.TB, setup ...func(r chi.Router)) *Server {
	s := &Server{
		router: newRouter("fake-jira"),
	}

	s.router.Use(s.record)
	s.router.Use(s.authorize)

	s.router.Route(RestRoot, func(r chi.Router) {
		for _, fn := range setup {
			fn(r)
		}
	})

	s.srv = httptest.NewServer(s.router)
	t.Cleanup(s.srv.Close)

	return s
}

// EnforcePolicy makes the service answer 403 to every request that the rego
// module does not allow. The module must define data.jira.authz.allow.
func (s *Server) EnforcePolicy(ctx context.Context, module io.Reader) error {
	p, err := newPolicy(ctx, module)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()

	return nil
}

// Handle registers a handler outside of the REST root, such as the content
// links of attachments.
func (s *Server) Handle(method, pattern string, h http.HandlerFunc) {
	s.router.Method(method, pattern, h)
}

func (s *Server) URL() string {
	return s.srv.URL
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Request, len(s.requests))
	copy(result, s.requests)
	return result
}

func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}

// Count returns the number of requests made with method to path. The path
// is relative to the REST root.
func (s *Server) Count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, r := range s.requests {
		if r.Method == method && r.Path == RestRoot+"/"+path {
			count++
		}
	}
	return count
}

func (s *Server) Last() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		p := s.policy
		s.mu.Unlock()

		if p != nil {
			if err := p.checkAccess(r.Context(), r); err != nil {
				Error(http.StatusForbidden, []string{"You do not have the permission to do this: " + err.Error()}, nil)(w, r)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func JSON(code int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json;charset=UTF-8")
		w.WriteHeader(code)
		w.Write([]byte(body))
	}
}

func NoContent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// Error responds with the structured error body used by the service.
func Error(code int, messages []string, fieldErrors map[string]string) http.HandlerFunc {
	if messages == nil {
		messages = []string{}
	}
	if fieldErrors == nil {
		fieldErrors = map[string]string{}
	}

	b, _ := json.Marshal(map[string]any{
		"errorMessages": messages,
		"errors":        fieldErrors,
	})

	return JSON(code, string(b))
}

func Content(contentType string, content []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}
}

// Sequence answers each request with the next handler in line. The last
// handler keeps answering once the others have been used up.
func Sequence(handlers ...http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	next := 0

	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		h := handlers[next]
		if next < len(handlers)-1 {
			next++
		}
		mu.Unlock()

		h(w, r)
	}
}
