// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorHandler renders StandardErrors as the JSON bodies the front-end expects.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// ErrorBody is the wire shape of every failure response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleHTTPError writes exactly one error response for err. Headers already
// set on w (CORS) are preserved.
func (h *ErrorHandler) HandleHTTPError(w http.ResponseWriter, r *http.Request, err error) int {
	stdErr := Normalize(err)
	status := HTTPStatus(stdErr.Code)

	h.logError(r, stdErr, status)

	if stdErr.Code == ErrCodeRateLimited {
		if secs, ok := stdErr.Metadata["retryAfterSeconds"].(int); ok && secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	}

	WriteJSON(w, status, BodyFor(stdErr))
	return status
}

// BodyFor builds the response body for a StandardError. Server-side
// failures carry the store message in details; internal errors do not leak
// their cause.
func BodyFor(stdErr *StandardError) ErrorBody {
	switch stdErr.Code {
	case ErrCodeLedgerWriteFailed:
		return ErrorBody{Error: stdErr.Message, Details: stdErr.Details}
	case ErrCodeInternal:
		return ErrorBody{Error: "Failed to submit form", Details: "internal error"}
	default:
		return ErrorBody{Error: stdErr.Message}
	}
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *ErrorHandler) logError(r *http.Request, stdErr *StandardError, status int) {
	if h.logger == nil {
		return
	}

	fields := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
		"status":        status,
	}
	if stdErr.Field != "" {
		fields["field"] = stdErr.Field
	}
	if r != nil {
		fields["method"] = r.Method
		fields["path"] = r.URL.Path
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields)
		return
	}
	h.logger.Warn("Request rejected", fields)
}
