package analysis

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration      = errors.New("configuration error")
	ErrConnectivity       = errors.New("connectivity error")
	ErrUnexpectedResponse = errors.New("unexpected response from workflow webhook")
	// ErrNotFoundAfterRetries is a terminal poll outcome, not a failure.
	ErrNotFoundAfterRetries = errors.New("analysis result not found after retries")
	ErrInvalidSubmission    = errors.New("invalid submission")
)

// ResponseError describes a webhook reply that did not start the workflow.
type ResponseError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *ResponseError) Error() string {
	if e.StatusCode != 200 {
		return fmt.Sprintf("error %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("unexpected response from workflow webhook: %q", e.Message)
}

func (e *ResponseError) Is(target error) bool { return target == ErrUnexpectedResponse }

type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string   { return e.kind.Error() + ": " + e.cause.Error() }
func (e *kindError) Unwrap() []error { return []error{e.kind, e.cause} }

// Connectivity marks err as a transport level failure.
func Connectivity(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: ErrConnectivity, cause: err}
}

// Invalid marks err as a submission validation failure.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: ErrInvalidSubmission, cause: err}
}
