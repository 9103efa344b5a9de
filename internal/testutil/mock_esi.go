// Package testutil provides a configurable mock ESI server for tests
// across esiclient's packages, serving real HTTP/2 over TLS so the
// transport layer's session handling is exercised end to end.
package testutil

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// MockESIResponse defines the behavior for a mock ESI endpoint response.
type MockESIResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockESI is a configurable mock ESI server for testing.
type MockESI struct {
	server *httptest.Server

	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
}

// NewMockESI creates a new mock ESI server speaking HTTP/2 over TLS.
func NewMockESI() *MockESI {
	mock := &MockESI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		if r.Header.Get("If-None-Match") != "" {
			mock.ConditionalCount++
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	_ = http2.ConfigureServer(mock.server.Config, &http2.Server{})
	mock.server.TLS = mock.server.Config.TLSConfig
	mock.server.StartTLS()

	return mock
}

// URL returns the mock server's base URL (https://host:port).
func (m *MockESI) URL() string { return m.server.URL }

// Client returns an *http.Client configured to trust the mock server's
// self-signed certificate and negotiate HTTP/2.
func (m *MockESI) Client() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
	}
}

// Close shuts down the mock server.
func (m *MockESI) Close() { m.server.Close() }

// Reset clears all tracking counters.
func (m *MockESI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockESI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple static response for a path.
func (m *MockESI) SetResponse(path string, resp MockESIResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockESI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockESI) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

func (m *MockESI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-ESI-Error-Limit-Remain", "100")
	w.Header().Set("X-ESI-Error-Limit-Reset", "60")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if r.Header.Get("If-None-Match") != "" {
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", `"default-etag"`)
	w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

// NewHealthyResponse builds a standard 200 OK response with ESI headers.
func NewHealthyResponse(data string) MockESIResponse {
	return MockESIResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"ETag":         `"test-etag-123"`,
			"Expires":      time.Now().Add(5 * time.Minute).Format(http.TimeFormat),
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotModifiedResponse builds a 304 Not Modified response.
func NewNotModifiedResponse() MockESIResponse {
	return MockESIResponse{
		StatusCode: http.StatusNotModified,
		Headers: map[string]string{
			"Expires": time.Now().Add(5 * time.Minute).Format(http.TimeFormat),
		},
	}
}

// NewTransientErrorResponse builds a 503 response carrying retry-after.
func NewTransientErrorResponse(retryAfterSeconds int) MockESIResponse {
	return MockESIResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"error": "service unavailable"}`,
		Headers: map[string]string{
			"Retry-After":  fmt.Sprintf("%d", retryAfterSeconds),
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewErrorBudgetResponse builds a 503 response signaling the endpoint
// error-limit-reset path instead of a literal retry-after.
func NewErrorBudgetResponse() MockESIResponse {
	return MockESIResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"error": "error limit exceeded"}`,
		Headers: map[string]string{
			"X-ESI-Error-Limit-Reset": "60",
			"Content-Type":            "application/json; charset=utf-8",
		},
	}
}

// NewPagedResponse builds a single page of a paginated GET, carrying
// x-pages, date and expires.
func NewPagedResponse(body string, pages int, expiresIn time.Duration) MockESIResponse {
	now := time.Now()
	return MockESIResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"X-Pages":      fmt.Sprintf("%d", pages),
			"Date":         now.Format(http.TimeFormat),
			"Expires":      now.Add(expiresIn).Format(http.TimeFormat),
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewConditionalHandler builds a handler that serves data until the
// client's if-none-match matches etag, then replies 304.
func NewConditionalHandler(etag string, data string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Header.Get("If-None-Match") == etag {
			w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}
