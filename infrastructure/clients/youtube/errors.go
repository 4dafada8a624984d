package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"

	"yt-fetcher/domain/apperror"
)

var (
	quotaReasons = map[string]bool{
		"quotaExceeded":           true,
		"dailyLimitExceeded":      true,
		"dailyLimitExceededUnreg": true,
	}
	rateLimitReasons = map[string]bool{
		"rateLimitExceeded":     true,
		"userRateLimitExceeded": true,
	}
	keyReasons = map[string]bool{
		"keyInvalid":          true,
		"keyExpired":          true,
		"accessNotConfigured": true,
		"ipRefererBlocked":    true,
		"forbidden":           true,
	}
)

// classifyError turns a transport failure into the apperror taxonomy.
func classifyError(op, apiKey string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classifyAPIError(op, apiKey, gerr)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.EOF) {
		return &apperror.MalformedResponseError{Op: op, Err: err}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &apperror.TransportError{Op: op, Err: err}
	}
	return err
}

func classifyAPIError(op, apiKey string, gerr *googleapi.Error) error {
	reason := apiReason(gerr)
	message := gerr.Message
	if message == "" {
		message = strings.TrimSpace(gerr.Body)
	}

	switch {
	case quotaReasons[reason]:
		return &apperror.QuotaExceededError{Op: op, Key: apiKey, Reason: reason, Err: gerr}
	case gerr.Code == http.StatusTooManyRequests || rateLimitReasons[reason]:
		return &apperror.RateLimitedError{Op: op, Reason: reasonOr(reason, "tooManyRequests"), Err: gerr}
	case keyReasons[reason] || gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		return &apperror.AuthError{Op: op, Key: apiKey, Reason: reasonOr(reason, http.StatusText(gerr.Code)), Err: gerr}
	case gerr.Code >= http.StatusInternalServerError:
		return &apperror.TransportError{Op: op, StatusCode: gerr.Code, Err: gerr}
	case gerr.Code >= http.StatusBadRequest:
		return &apperror.BadRequestError{Op: op, Message: message, Err: gerr}
	default:
		return &apperror.MalformedResponseError{Op: op, Err: gerr}
	}
}

// apiReason returns the first quota or rate reason when present, else the first reason.
func apiReason(gerr *googleapi.Error) string {
	first := ""
	for _, item := range gerr.Errors {
		if quotaReasons[item.Reason] || rateLimitReasons[item.Reason] {
			return item.Reason
		}
		if first == "" {
			first = item.Reason
		}
	}
	return first
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
