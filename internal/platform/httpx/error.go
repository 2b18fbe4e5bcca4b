package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kraal-market/client/internal/platform/requestctx"
)

// maxErrorBody caps how much of an error response body is read when decoding
// the envelope, so a misbehaving server cannot balloon memory.
const maxErrorBody = 64 << 10

// Error represents the canonical JSON error envelope exchanged with the API.
// The server side writes it, the client side decodes it, so both halves of
// the module agree on one shape.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	Details   map[string]any
}

// NewError constructs a new Error with the provided parameters.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// Error implements the error interface so envelopes can travel as ordinary
// Go errors through the client call stack.
func (e Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (status %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Message)
}

// WithRequestID sets the request identifier on the error payload.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = sanitize(id, 80)
	return e
}

// WithDetails attaches additional JSON-serialisable metadata.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	copyDetails := make(map[string]any, len(details))
	for k, v := range details {
		copyDetails[k] = v
	}
	e.Details = copyDetails
	return e
}

// WriteError writes the structured error as JSON to the provided response writer.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	requestID := err.RequestID
	if requestID == "" {
		requestID = sanitize(middleware.GetReqID(ctx), 80)
	}
	if requestID == "" {
		requestID = sanitize(requestctx.RequestID(ctx), 80)
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}

	if requestID != "" {
		payload["request_id"] = requestID
	}
	for k, v := range err.Details {
		payload[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// FromResponse decodes the error envelope carried by a non-2xx response. It
// tolerates arbitrary bodies: when the payload is not the canonical envelope
// the status code still produces a usable Error.
func FromResponse(resp *http.Response) Error {
	out := Error{
		Status:    resp.StatusCode,
		RequestID: sanitize(resp.Header.Get("X-Request-Id"), 80),
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var envelope struct {
		Code      string `json:"error"`
		Message   string `json:"message"`
		Status    int    `json:"status"`
		RequestID string `json:"request_id"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		out.Code = sanitize(envelope.Code, 80)
		out.Message = sanitize(envelope.Message, 512)
		if envelope.Status != 0 {
			out.Status = envelope.Status
		}
		if envelope.RequestID != "" {
			out.RequestID = sanitize(envelope.RequestID, 80)
		}
	}

	if out.Code == "" {
		out.Code = codeForStatus(out.Status)
	}
	if out.Message == "" {
		out.Message = http.StatusText(out.Status)
	}
	return out
}

// StatusOf extracts the HTTP status from err when it wraps an Error envelope.
// It returns 0 for transport-level failures that never produced a response.
func StatusOf(err error) int {
	var envelope Error
	if errors.As(err, &envelope) {
		return envelope.Status
	}
	return 0
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, status int) bool {
	return StatusOf(err) == status
}

func codeForStatus(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "unknown_error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}

func sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
