// Package httputil provides shared HTTP utilities for consistent response handling.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"
)

// Content types written by this package.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// DetailResponse is the error body shared by every endpoint. Detail is a
// string for single errors and a list for request validation errors.
type DetailResponse struct {
	Detail any    `json:"detail"`
	Error  string `json:"error,omitempty"`
}

// WriteDetail writes {"detail": detail}.
func WriteDetail(w http.ResponseWriter, status int, detail any) {
	WriteJSON(w, status, DetailResponse{Detail: detail})
}

// WriteDetailWithCode writes {"detail": detail, "error": code}.
func WriteDetailWithCode(w http.ResponseWriter, status int, code string, detail any) {
	WriteJSON(w, status, DetailResponse{Detail: detail, Error: code})
}

// WriteText writes body verbatim as text/plain.
func WriteText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", ContentTypeText)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// WriteOK writes a 200 OK response with data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteInternalError writes a 500 with a fixed, non-revealing detail.
func WriteInternalError(w http.ResponseWriter) {
	WriteDetail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// WriteTooManyRequests writes a 429 Too Many Requests response.
func WriteTooManyRequests(w http.ResponseWriter) {
	WriteDetailWithCode(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please slow down.")
}
