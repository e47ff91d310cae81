package retry

import "github.com/rohmanhakim/docs-crawler/pkg/failure"

// Result carries the outcome of a Retry call: the value on success, the
// classified error on failure, and how many attempts it took either way.
type Result[T any] struct {
	value    T
	err      failure.ClassifiedError
	attempts int
}

// NewSuccessResult wraps a successful value and the attempt it succeeded on.
func NewSuccessResult[T any](value T, attempts int) Result[T] {
	return Result[T]{value: value, attempts: attempts}
}

// Value returns the produced value. It is the zero value of T on failure.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the classified error, or nil on success.
func (r Result[T]) Err() failure.ClassifiedError {
	return r.err
}

// Attempts returns how many calls to fn were made.
func (r Result[T]) Attempts() int {
	return r.attempts
}

// IsSuccess reports whether the retry loop ended without error.
func (r Result[T]) IsSuccess() bool {
	return r.err == nil
}

// IsFailure reports whether the retry loop ended with an error.
func (r Result[T]) IsFailure() bool {
	return r.err != nil
}
