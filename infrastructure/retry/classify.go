package retry

import (
	"context"
	"errors"

	"yt-fetcher/domain/apperror"
)

// Class is the retry classification of an error.
type Class int

const (
	ClassNone Class = iota
	ClassFatal
	ClassQuotaExceeded
	ClassRateLimited
	ClassTransient
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassQuotaExceeded:
		return "quota_exceeded"
	case ClassRateLimited:
		return "rate_limited"
	case ClassTransient:
		return "transient_network"
	default:
		return "fatal"
	}
}

// Retryable reports whether another attempt may succeed.
func (c Class) Retryable() bool {
	return c == ClassQuotaExceeded || c == ClassRateLimited || c == ClassTransient
}

// Classify maps an error onto a retry class. Anything not known to be transient is fatal.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassFatal
	}

	// Wrappers that unwrap to a retryable cause are terminal themselves.
	var exhausted *apperror.KeyPoolExhaustedError
	if errors.As(err, &exhausted) {
		return ClassFatal
	}
	var spent *apperror.RetryExhaustedError
	if errors.As(err, &spent) {
		return ClassFatal
	}

	var quota *apperror.QuotaExceededError
	if errors.As(err, &quota) {
		return ClassQuotaExceeded
	}
	var limited *apperror.RateLimitedError
	if errors.As(err, &limited) {
		return ClassRateLimited
	}
	var transport *apperror.TransportError
	if errors.As(err, &transport) {
		return ClassTransient
	}
	return ClassFatal
}
