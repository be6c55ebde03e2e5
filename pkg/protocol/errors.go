package protocol

import "errors"

// Handler failures are either retryable (transient: network, timeout,
// throttling) or permanent. Plain errors are treated as retryable; handlers
// mark permanent failures with NewNonRetryableError so no retries are wasted.

type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }

func (e *nonRetryableError) Unwrap() error { return e.err }

// NewNonRetryableError marks a handler failure as permanent.
func NewNonRetryableError(err error) error {
	if err == nil {
		return nil
	}

	return &nonRetryableError{err: err}
}

// IsRetryable reports whether a handler error may be retried.
func IsRetryable(err error) bool {
	var nre *nonRetryableError

	return !errors.As(err, &nre)
}
