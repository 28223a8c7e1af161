package v1

import (
	"errors"
)

var (
	// ErrInvalidResponse is matched by errors returned for empty or
	// malformed JSON bodies.
	ErrInvalidResponse = errors.New("invalid server response")
	// ErrImageUnavailable is returned when no successful image response was
	// received within the retry budget.
	ErrImageUnavailable = errors.New("image cannot be retrieved")
	// ErrInvalidImage is returned when the last image response was not a PNG
	// or JPEG payload.
	ErrInvalidImage = errors.New("image cannot be retrieved: incorrect format")
)

// ValidationError reports a missing required argument. It is returned before
// any request is issued.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Reply returns the structured form of the error, {status: error, error: msg}.
func (e *ValidationError) Reply() Reply {
	return Reply{"status": "error", "error": e.Message}
}

type InvalidResponseError struct {
	Body string
	Err  error
}

func (e *InvalidResponseError) Error() string {
	if e.Err == nil {
		return ErrInvalidResponse.Error()
	}
	return ErrInvalidResponse.Error() + ": " + e.Err.Error()
}

func (e *InvalidResponseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidResponse}
	}
	return []error{ErrInvalidResponse, e.Err}
}
