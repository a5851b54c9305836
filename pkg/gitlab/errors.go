package gitlab

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrTimeout      = errors.New("request timed out")
	ErrBusy         = errors.New("authentication already in progress")
	ErrAccessDenied = errors.New("access denied")
	ErrForbidden    = errors.New("forbidden")
	ErrTooLarge     = errors.New("file too large")
	ErrNotFound     = errors.New("file not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("service unavailable or blocked")
	ErrBadPath      = errors.New("invalid file path")
)

// RequestError is the normalized form of every provider-facing failure.
// Callers match on the wrapped sentinel with errors.Is; Status carries the
// raw HTTP code for the cases (409) that are signaled structurally.
type RequestError struct {
	Status    int
	Message   string
	Retryable bool

	err error
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("error %d", e.Status)
}

func (e *RequestError) Unwrap() error {
	return e.err
}

func newRequestError(kind error, status int, message string, retryable bool) *RequestError {
	return &RequestError{
		Status:    status,
		Message:   message,
		Retryable: retryable,
		err:       kind,
	}
}

// Retryable reports whether the failure is worth re-driving the same
// operation (timeouts, denied auth, blocked browser).
func Retryable(err error) bool {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}
