package mocks

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// ContentAPI serves canned article payloads keyed by path
type ContentAPI struct {
	Server *httptest.Server

	mu       sync.Mutex
	articles map[string]string
	status   map[string]int
	queries  []url.Values
}

// NewContentAPI starts a content API serving articles (path -> JSON body)
func NewContentAPI(articles map[string]string) *ContentAPI {
	c := &ContentAPI{
		articles: articles,
		status:   map[string]int{},
	}
	c.Server = httptest.NewServer(http.HandlerFunc(c.serve))
	return c
}

// SetStatus makes path answer with the given status code
func (c *ContentAPI) SetStatus(path string, code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[path] = code
}

// Queries returns the query strings of every request received
func (c *ContentAPI) Queries() []url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]url.Values(nil), c.queries...)
}

// URL returns the server base URL
func (c *ContentAPI) URL() string {
	return c.Server.URL
}

// Close shuts the server down
func (c *ContentAPI) Close() {
	c.Server.Close()
}

func (c *ContentAPI) serve(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.queries = append(c.queries, r.URL.Query())
	code, hasStatus := c.status[r.URL.Path]
	body, ok := c.articles[r.URL.Path]
	c.mu.Unlock()

	if hasStatus {
		w.WriteHeader(code)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

// BackendRequest is one call received by the mock backend
type BackendRequest struct {
	Path   string
	Method string
	Form   url.Values
}

// Backend is an in-process prediction backend. Responses are raw JSON bodies.
type Backend struct {
	Server *httptest.Server

	mu          sync.Mutex
	requests    []BackendRequest
	entities    string
	themes      string
	predictions map[string]string
	status      map[string]int
	delays      map[string]time.Duration
}

// NewBackend starts a backend with empty default responses
func NewBackend() *Backend {
	b := &Backend{
		entities:    `{"html":"","entities":[]}`,
		themes:      `[]`,
		predictions: map[string]string{},
		status:      map[string]int{},
		delays:      map[string]time.Duration{},
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	return b
}

// SetEntities sets the /entities response body
func (b *Backend) SetEntities(body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entities = body
}

// SetThemes sets the /themes response body
func (b *Backend) SetThemes(body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.themes = body
}

// SetPrediction sets the /predict response body for method
func (b *Backend) SetPrediction(method, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.predictions[method] = body
}

// SetStatus forces a status code for a path ("/entities") or a predict method ("predict:bert")
func (b *Backend) SetStatus(key string, code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status[key] = code
}

// SetDelay holds the response for key (same keys as SetStatus) until d
// elapses or the client gives up
func (b *Backend) SetDelay(key string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[key] = d
}

// Requests returns every call received so far
func (b *Backend) Requests() []BackendRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BackendRequest(nil), b.requests...)
}

// URL returns the server base URL
func (b *Backend) URL() string {
	return b.Server.URL
}

// Close shuts the server down
func (b *Backend) Close() {
	b.Server.Close()
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := r.URL.Query().Get("method")

	key := r.URL.Path
	if r.URL.Path == "/predict" {
		key = "predict:" + method
	}

	b.mu.Lock()
	b.requests = append(b.requests, BackendRequest{Path: r.URL.Path, Method: method, Form: r.PostForm})
	code, hasStatus := b.status[key]
	delay := b.delays[key]
	var body string
	switch r.URL.Path {
	case "/entities":
		body = b.entities
	case "/themes":
		body = b.themes
	case "/predict":
		var ok bool
		body, ok = b.predictions[method]
		if !ok {
			body = `{"predictions":[]}`
		}
	case "/status":
		body = `"OK"`
	default:
		b.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if hasStatus {
		w.WriteHeader(code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}
