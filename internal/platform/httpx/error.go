package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ambershop/api/internal/platform/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
	maxTraceLen   = 64
)

// Error is the JSON error envelope every handler returns. Details are
// flattened into the payload next to the standard fields, so a detail key
// like "minimumCents" appears at the top level of the response body.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError builds an error envelope. A zero status becomes 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clean(code, maxCodeLen),
		Message: clean(message, maxMessageLen),
		Status:  status,
	}
}

// WithRequestID overrides the request ID taken from context.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = clean(id, maxCodeLen)
	return e
}

// WithTraceID overrides the trace ID taken from context.
func (e Error) WithTraceID(id string) Error {
	e.TraceID = clean(id, maxTraceLen)
	return e
}

// WithDetails attaches extra top-level payload fields.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(details))
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WriteError encodes the envelope. Request and trace IDs fall back to the
// values carried on the context when not set explicitly.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if id := firstNonEmpty(err.RequestID, clean(middleware.GetReqID(ctx), maxCodeLen)); id != "" {
		body["request_id"] = id
	}
	if id := firstNonEmpty(err.TraceID, clean(requestctx.TraceID(ctx), maxTraceLen)); id != "" {
		body["trace_id"] = id
	}
	for k, v := range err.Details {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func clean(value string, limit int) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}
