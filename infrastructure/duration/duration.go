// Package duration decodes the ISO-8601 time-only durations returned in contentDetails.duration.
package duration

import (
	"regexp"
	"strconv"

	"yt-fetcher/domain/apperror"
	"yt-fetcher/domain/model"
)

var pattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// Parse converts values such as "PT1H23M3S". A nil input yields a nil duration and no error.
// Missing components default to zero, so "PT" is a zero duration.
func Parse(s *string) (*model.Duration, error) {
	if s == nil {
		return nil, nil
	}
	m := pattern.FindStringSubmatch(*s)
	if m == nil {
		return nil, &apperror.DurationParseError{Input: *s}
	}

	var parts [3]int
	for i, raw := range m[1:] {
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &apperror.DurationParseError{Input: *s}
		}
		parts[i] = n
	}
	return &model.Duration{Hours: parts[0], Minutes: parts[1], Seconds: parts[2]}, nil
}

// ParseString is Parse for callers holding a plain string.
func ParseString(s string) (*model.Duration, error) {
	return Parse(&s)
}
