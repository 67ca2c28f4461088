package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pep299/article-classifier-proxy/internal/article"
	"github.com/pep299/article-classifier-proxy/internal/backend"
	"github.com/pep299/article-classifier-proxy/internal/config"
	"github.com/pep299/article-classifier-proxy/internal/health"
	"github.com/pep299/article-classifier-proxy/internal/prediction"
	"github.com/pep299/article-classifier-proxy/internal/service"
	"github.com/pep299/article-classifier-proxy/internal/source"
	"github.com/pep299/article-classifier-proxy/internal/transport/response"
)

// Version is reported by /health; cmd/server overrides it at build time
var Version = "dev"

// Server holds the HTTP server and its dependencies
type Server struct {
	config  *config.Config
	proxy   *service.Proxy
	monitor *health.Monitor
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config) (*Server, error) {
	mode, err := backend.ParseMode(cfg.BackendPayload)
	if err != nil {
		return nil, err
	}
	methods, err := prediction.NewMethodSet(cfg.PredictionMethods)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout()}
	backendClient := backend.NewClient(cfg.APIURL, httpClient)

	proxy := service.NewProxy(
		source.NewValidator(cfg.AllowedSourceHost),
		article.NewFetcher(httpClient, cfg.MaxArticleBytes),
		backendClient,
		mode,
		methods,
	)

	return NewServerWithDeps(cfg, proxy, health.NewMonitor(backendClient, cfg.StatusSchedule, 0)), nil
}

// NewServerWithDeps creates a server around existing collaborators
func NewServerWithDeps(cfg *config.Config, proxy *service.Proxy, monitor *health.Monitor) *Server {
	return &Server{
		config:  cfg,
		proxy:   proxy,
		monitor: monitor,
	}
}

// Proxy returns the proxy operations served by s
func (s *Server) Proxy() *service.Proxy {
	return s.proxy
}

// Monitor returns the backend health monitor
func (s *Server) Monitor() *health.Monitor {
	return s.monitor
}

// SetupRoutes configures HTTP routes. Every route is served both at the root
// and under /api.
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.loggingMiddleware)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.WriteMethodNotAllowed(w, "Method not allowed")
	})

	s.register(r.PathPrefix("/api").Subrouter())
	s.register(r)

	return r
}

func (s *Server) register(r *mux.Router) {
	// Proxy operations
	r.HandleFunc("/article", s.articleHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/entities", s.entitiesHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/themes", s.themesHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/predict", s.predictHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/analyze", s.analyzeHandler).Methods("POST", "OPTIONS")

	// Status and configuration
	r.HandleFunc("/methods", s.methodsHandler).Methods("GET", "OPTIONS")
	r.HandleFunc("/health", s.healthHandler).Methods("GET", "OPTIONS")
}

// Middleware functions

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID returns the id assigned to the request carried by ctx
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestIDMiddleware reuses the caller's X-Request-ID or assigns a new one
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		log.Printf("%s %s %d %v request_id=%s", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start), RequestID(r.Context()))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
