// Package apperror holds the error taxonomy shared by the YouTube client layers.
package apperror

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyKeyPool is returned when a key pool is built or reloaded without keys.
	ErrEmptyKeyPool = errors.New("key pool requires at least one key")
	// ErrVideoNotFound is returned when the upstream answers without the requested video.
	ErrVideoNotFound = errors.New("video not found")
	// ErrPaginationTruncated marks a partial page walk. It is carried as a reason next to
	// a Truncated flag and never returned as a call failure.
	ErrPaginationTruncated = errors.New("pagination truncated")
)

// TransportError is a network level failure (dial, timeout, 5xx). Retryable.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: transport error (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// QuotaExceededError means the key used for the call has no quota left. Retryable with another key.
type QuotaExceededError struct {
	Op     string
	Key    string
	Reason string
	Err    error
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: quota exceeded for key %s (%s)", e.Op, MaskKey(e.Key), e.Reason)
}

func (e *QuotaExceededError) Unwrap() error { return e.Err }

// RateLimitedError is a short term throttle. Retryable after backoff, no rotation.
type RateLimitedError struct {
	Op     string
	Reason string
	Err    error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited (%s)", e.Op, e.Reason)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// BadRequestError is a rejected request. Fatal.
type BadRequestError struct {
	Op      string
	Message string
	Err     error
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("%s: bad request: %s", e.Op, e.Message)
}

func (e *BadRequestError) Unwrap() error { return e.Err }

// AuthError is an invalid, revoked or unauthorized key. Fatal.
type AuthError struct {
	Op     string
	Key    string
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: key %s rejected (%s)", e.Op, MaskKey(e.Key), e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// MalformedResponseError is an upstream payload that could not be decoded. Fatal.
type MalformedResponseError struct {
	Op  string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// KeyPoolExhaustedError is returned when every key in the pool is exhausted or inactive.
type KeyPoolExhaustedError struct {
	KeysTried int
	Last      error
}

func (e *KeyPoolExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("key pool exhausted after trying %d key(s)", e.KeysTried)
	}
	return fmt.Sprintf("key pool exhausted after trying %d key(s): %v", e.KeysTried, e.Last)
}

func (e *KeyPoolExhaustedError) Unwrap() error { return e.Last }

// DurationParseError is a soft error: it affects one field of one record.
type DurationParseError struct {
	Input string
}

func (e *DurationParseError) Error() string {
	return fmt.Sprintf("invalid duration %q", e.Input)
}

// RetryExhaustedError wraps the last failure once the attempt budget is spent.
type RetryExhaustedError struct {
	Attempts  int
	TotalWait time.Duration
	Last      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempt(s), waited %s: %v", e.Attempts, e.TotalWait, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// MaskKey keeps the last four characters of a credential for logs and messages.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
