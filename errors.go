package oaiembed

import (
	"encoding/json"
	"fmt"

	"github.com/stevemurr/oaiembed/types"
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string

	// APIError is the decoded error envelope, nil if the body was not one.
	APIError *types.APIError

	// Body is the raw response body.
	Body []byte
}

func (e *StatusError) Error() string {
	if e.APIError != nil && e.APIError.Error.Message != "" {
		return fmt.Sprintf("embeddings request failed: %s - %s", e.Status, e.APIError.Error.Message)
	}
	return fmt.Sprintf("embeddings request failed: %s - %s", e.Status, string(e.Body))
}

// Type returns the API error type, e.g. types.ErrorTypeRateLimit, or "".
func (e *StatusError) Type() string {
	if e.APIError == nil {
		return ""
	}
	return e.APIError.Error.Type
}

func newStatusError(statusCode int, status string, body []byte) *StatusError {
	se := &StatusError{StatusCode: statusCode, Status: status, Body: body}

	var apiErr types.APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		se.APIError = &apiErr
	}
	return se
}
