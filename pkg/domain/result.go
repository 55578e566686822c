package domain

import "errors"

// errNoReason is used when Fail is called with a nil error, so a failed
// Result always carries a reason.
var errNoReason = errors.New("failed without a reason")

// Result is a two-case outcome: exactly one of a value or an error is populated.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail wraps a failure reason.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = errNoReason
	}
	return Result[T]{err: err}
}

// From converts a (value, error) pair; a non-nil error discards the value.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Value returns the held value, or the zero value for a failure.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure reason, or nil for a success.
func (r Result[T]) Err() error {
	return r.err
}

// Unwrap returns the result as an idiomatic (value, error) pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.err != nil {
		var zero T
		return zero, r.err
	}
	return r.value, nil
}

// Must returns the value or panics with the failure reason.
func (r Result[T]) Must() T {
	if r.err != nil {
		panic(r.err)
	}
	return r.value
}
