package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/showroomlabs/showroom/internal/log"
)

// Error is the body of every non-2xx response:
// {"error": {"code": "...", "message": "...", "status": ...}}.
// Code is a stable machine-readable identifier. Message is meant for humans
// and never carries a dependency's internal error text.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type errorEnvelope struct {
	Error *Error `json:"error"`
}

// writeJSON writes a JSON response with the given status code. The body is
// encoded into a buffer first so headers only go out after successful
// encoding; an encoding failure can still produce a proper 500.
func writeJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("encoding response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common; a debug line is enough.
		logger.Debug("writing response body", "error", err)
	}
}

// writeError writes the error envelope.
func writeError(w http.ResponseWriter, status int, code, message string, logger log.Logger) {
	writeJSON(w, status, errorEnvelope{Error: &Error{Code: code, Message: message, Status: status}}, logger)
}
