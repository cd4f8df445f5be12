// Package httputil provides shared HTTP utilities for consistent response handling.
package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
)

// ContentTypeJSON is the content type of every JSON body.
const ContentTypeJSON = "application/json"

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// EncodeJSON renders data the way WriteJSON sends it, trailing newline included.
func EncodeJSON(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes a JSON response with the given status code.
// The body is encoded before anything is written, so an encoding failure
// leaves the response untouched and is returned to the caller.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	if data == nil {
		w.Header().Set("Content-Type", ContentTypeJSON)
		w.WriteHeader(status)
		return nil
	}
	body, err := EncodeJSON(data)
	if err != nil {
		return err
	}
	WriteBody(w, status, ContentTypeJSON, body)
	return nil
}

// WriteBody writes a fully rendered body with an explicit Content-Length.
func WriteBody(w http.ResponseWriter, status int, contentType string, body []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteErrorResponse writes resp as the JSON body of an error response.
func WriteErrorResponse(w http.ResponseWriter, status int, resp ErrorResponse) {
	// ErrorResponse only holds strings; encoding cannot fail.
	_ = WriteJSON(w, status, resp)
}
