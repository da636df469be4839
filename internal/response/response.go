// Package response provides shared JSON response helpers for HTTP handlers.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/artgallery/service/internal/apperr"
)

// ErrorBody is the body of every failed request.
type ErrorBody struct {
	Error   string `json:"error" example:"No file provided."`
	Details string `json:"details,omitempty" example:"put object: connection refused"`
}

// URLBody is the body of a successful upload.
type URLBody struct {
	URL string `json:"url" example:"https://cdn.example.com/artwork/cat-3f9a1c2b7d4e.png"`
}

// JSON writes a JSON-encoded payload with the given HTTP status code.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// URL writes a 200 response carrying a public object URL.
func URL(w http.ResponseWriter, url string) {
	JSON(w, http.StatusOK, URLBody{URL: url})
}

// Error writes an error response with the given status and message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}

// Fail renders err through the apperr taxonomy. The cause is never written.
func Fail(w http.ResponseWriter, err error) {
	e := apperr.As(err)
	JSON(w, e.Status, ErrorBody{Error: e.Message, Details: e.Details})
}

// MethodNotAllowed writes a 405 response.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Fail(w, apperr.ErrMethodNotAllowed)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, http.StatusNotFound, "Not Found")
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string) {
	Fail(w, apperr.ErrUnauthorized.WithMessage(message))
}
