package response

import (
	"encoding/json"
	"net/http"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
)

// ErrorBody is the body of every non-2xx response
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes v as JSON with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(v)
}

// WriteOK writes a 200 response
func WriteOK(w http.ResponseWriter, v interface{}) error {
	return WriteJSON(w, http.StatusOK, v)
}

// WriteError writes an {"error": message} response
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, ErrorBody{Error: message})
}

// WriteBadRequest writes a 400 Bad Request error
func WriteBadRequest(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusBadRequest, message)
}

// WriteBadGateway writes a 502 Bad Gateway error
func WriteBadGateway(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusBadGateway, message)
}

// WriteMethodNotAllowed writes a 405 Method Not Allowed error
func WriteMethodNotAllowed(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusMethodNotAllowed, message)
}

// WriteErr writes err with the status code of its kind
func WriteErr(w http.ResponseWriter, err error) error {
	message := apperr.Message(err)
	switch status := apperr.StatusCode(err); status {
	case http.StatusBadRequest:
		return WriteBadRequest(w, message)
	case http.StatusBadGateway:
		return WriteBadGateway(w, message)
	default:
		return WriteError(w, status, message)
	}
}
