// Package articleproxy exposes the article classification proxy as a Cloud
// Functions HTTP entry point.
package articleproxy

import (
	"log"
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/pep299/article-classifier-proxy/internal/config"
	"github.com/pep299/article-classifier-proxy/internal/handlers"
	"github.com/pep299/article-classifier-proxy/internal/transport/response"
)

func init() {
	functions.HTTP("ArticleProxy", HandleRequest)
}

var (
	handlerOnce sync.Once
	handler     http.Handler
	handlerErr  error
)

// CreateHandler builds the routed handler from the environment
func CreateHandler() (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	server, err := handlers.NewServer(cfg)
	if err != nil {
		return nil, err
	}
	return server.SetupRoutes(), nil
}

// HandleRequest serves one Cloud Functions request. The handler is built on
// the first call and reused by the instance afterwards.
func HandleRequest(w http.ResponseWriter, r *http.Request) {
	handlerOnce.Do(func() {
		handler, handlerErr = CreateHandler()
		if handlerErr != nil {
			log.Printf("Failed to create handler: %v\nStack:\n%s", handlerErr, debug.Stack())
		}
	})

	if handlerErr != nil {
		response.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	handler.ServeHTTP(w, r)
}
