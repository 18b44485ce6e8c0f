package embedder

import (
	"context"
	"errors"

	"github.com/dshills/scriptrag/pkg/types"
)

// PermanentError marks a provider failure that retrying cannot fix, such as
// a rejected request or bad credentials.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Permanent wraps err so Retry gives up on it immediately
func Permanent(err error) error { return permanent(err) }

// IsRetryable reports whether a failed call may succeed when repeated.
// Network failures, timeouts and rate limiting are retryable; invalid input,
// permanent provider errors and cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, types.ErrInvalidInput) || errors.Is(err, types.ErrEmptyContent) {
		return false
	}
	return true
}
