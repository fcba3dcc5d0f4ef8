package types

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownModel is returned for a model literal outside the supported set.
	ErrUnknownModel = errors.New("unknown embedding model")

	// ErrEmptyInput is returned when a list input carries no strings.
	ErrEmptyInput = errors.New("embedding input must contain at least one string")

	// ErrMissingField is wrapped by ParseError when a required key is absent or null.
	ErrMissingField = errors.New("missing required field")
)

// ParseError reports a response body that does not match the expected schema.
type ParseError struct {
	// Field is the JSON path of the offending value, empty when the document itself is bad.
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse embeddings response: %v", e.Err)
	}
	return fmt.Sprintf("parse embeddings response: %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// APIError represents an OpenAI API error response.
type APIError struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    *string `json:"code"`
}

// Common error types
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeAuth           = "authentication_error"
	ErrorTypePermission     = "permission_error"
	ErrorTypeNotFound       = "not_found_error"
	ErrorTypeRateLimit      = "rate_limit_error"
	ErrorTypeServer         = "server_error"
)
