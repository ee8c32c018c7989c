package domain

import "errors"

// Common errors used throughout the application. Each one maps to a fatal
// outcome for a sync run, except where the service downgrades it to a warning.
var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrFetchFailed             = errors.New("no prefix source yielded content")
	ErrNoPrefixesFound         = errors.New("no prefixes found")
	ErrResourceRetrieval       = errors.New("existing resource could not be retrieved")
	ErrWriteFailed             = errors.New("resource write failed")
	ErrUnsupportedResourceType = errors.New("unsupported resource type")
)

// APIError represents an error response from the HTTP API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}
