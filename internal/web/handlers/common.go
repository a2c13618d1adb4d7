package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/facegraph/internal/consolidation"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// errInternal is the client-facing message of every 500 response.
const errInternal = "Internal Server Error"

// ErrorResponse is the body of every non-2xx response.
// Message carries internal detail and is only set in development.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Warn().Err(err).Msg("encoding JSON response")
		}
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondConsolidationError maps a consolidation error to its status code.
// Internal detail is only exposed when dev is true.
func respondConsolidationError(w http.ResponseWriter, err error, dev bool) {
	var cerr *consolidation.Error
	if !errors.As(err, &cerr) {
		cerr = &consolidation.Error{Kind: consolidation.KindInternal, Message: errInternal, Err: err}
	}

	resp := ErrorResponse{Error: cerr.Message}
	status := http.StatusInternalServerError
	switch cerr.Kind {
	case consolidation.KindInvalidInput:
		status = http.StatusBadRequest
	case consolidation.KindNotFound:
		status = http.StatusNotFound
	case consolidation.KindConstraintViolation:
		status = http.StatusConflict
	default:
		resp.Error = errInternal
	}

	if dev && cerr.Err != nil {
		resp.Message = cerr.Err.Error()
	}
	respondJSON(w, status, resp)
}
