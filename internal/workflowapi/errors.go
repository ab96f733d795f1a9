package workflowapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx answer from the workflow service.
type APIError struct {
	StatusCode int
	// Detail is the "detail" field of the error body. Non-string details are kept as compact JSON.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return e
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		e.Detail = s
		return e
	}
	if bytes.Equal(payload.Detail, []byte("null")) {
		return e
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload.Detail); err == nil {
		e.Detail = compact.String()
	}
	return e
}

// Message returns the text a user should see for err: the server's detail for
// API errors, the error text otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}

// IsNotFound reports whether err is a 404 from the workflow service (e.g. unknown thread).
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
