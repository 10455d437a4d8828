package client

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrRequestFailed matches every *APIError via errors.Is.
var ErrRequestFailed = errors.New("request failed")

// APIError is returned for any non-2xx response.
type APIError struct {
	Op         string
	Message    string
	StatusCode int
	// Detail is the backend's "error" or "detail" field when the body has one.
	Detail string
	Body   []byte
}

// Error returns the fixed per-operation message.
func (e *APIError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is(err, ErrRequestFailed) hold.
func (e *APIError) Unwrap() error {
	return ErrRequestFailed
}

// AsAPIError extracts an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// BackendDetail returns the backend-provided error text carried by err, if any.
func BackendDetail(err error) string {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Detail
	}
	return ""
}

func newAPIError(op, message string, status int, body []byte) *APIError {
	if message == "" {
		message = op + " failed"
	}
	return &APIError{
		Op:         op,
		Message:    message,
		StatusCode: status,
		Detail:     extractDetail(body),
		Body:       body,
	}
}

// extractDetail reads {"error": "..."} (Flask) or {"detail": "..."} (FastAPI).
// FastAPI validation errors carry a list under detail; its messages are joined.
func extractDetail(body []byte) string {
	var payload struct {
		Error  json.RawMessage `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if text := rawText(payload.Error); text != "" {
		return text
	}
	return rawText(payload.Detail)
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
