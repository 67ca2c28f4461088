package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
	"github.com/pep299/article-classifier-proxy/internal/transport/response"
)

// maxRequestBytes caps inbound request bodies
const maxRequestBytes = 64 * 1024

// proxyRequest is the body of every proxy operation
type proxyRequest struct {
	URL    string `json:"url"`
	Method string `json:"method"`
}

// decodeRequest reads a JSON or form-encoded body. A method given in the
// query string is used when the body has none.
func decodeRequest(w http.ResponseWriter, r *http.Request) (*proxyRequest, error) {
	var req proxyRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidInput, "Invalid request body", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				return nil, apperr.Wrap(apperr.InvalidInput, "Invalid request body", err)
			}
		}
	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		if err := r.ParseForm(); err != nil {
			return nil, apperr.Wrap(apperr.InvalidInput, "Invalid request body", err)
		}
		req.URL = r.PostForm.Get("url")
		req.Method = r.PostForm.Get("method")
	}

	if req.Method == "" {
		req.Method = r.URL.Query().Get("method")
	}
	return &req, nil
}

// articleHandler fetches an article and its extracted text
func (s *Server) articleHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		response.WriteErr(w, err)
		return
	}

	result, err := s.proxy.Article(r.Context(), req.URL)
	if err != nil {
		response.WriteErr(w, err)
		return
	}
	response.WriteOK(w, result)
}

// entitiesHandler returns the named entities of an article
func (s *Server) entitiesHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		response.WriteErr(w, err)
		return
	}

	result, err := s.proxy.Entities(r.Context(), req.URL)
	if err != nil {
		response.WriteErr(w, err)
		return
	}
	response.WriteOK(w, result)
}

// themesHandler returns the themes of an article
func (s *Server) themesHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		response.WriteErr(w, err)
		return
	}

	result, err := s.proxy.Themes(r.Context(), req.URL)
	if err != nil {
		response.WriteErr(w, err)
		return
	}
	response.WriteOK(w, result)
}

// predictHandler classifies an article with one method
func (s *Server) predictHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		response.WriteErr(w, err)
		return
	}

	result, err := s.proxy.Predict(r.Context(), req.URL, req.Method)
	if err != nil {
		response.WriteErr(w, err)
		return
	}
	response.WriteOK(w, result)
}

// analyzeHandler runs a whole submission: article, entities, themes and
// every configured method
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		response.WriteErr(w, err)
		return
	}

	result, err := s.proxy.Analyze(r.Context(), req.URL)
	if err != nil {
		response.WriteErr(w, err)
		return
	}
	response.WriteOK(w, result)
}

// methodsHandler lists the accepted prediction methods
func (s *Server) methodsHandler(w http.ResponseWriter, r *http.Request) {
	response.WriteOK(w, map[string]interface{}{
		"methods": s.proxy.Methods(),
		"payload": s.proxy.Mode(),
	})
}

// healthHandler provides health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   Version,
	}
	if s.monitor != nil {
		resp["backend"] = s.monitor.Latest(r.Context())
	}

	response.WriteOK(w, resp)
}
