package utils

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidTimeOfDay is returned when a departure time cannot be reduced
// to HH:mm:ss.
var ErrInvalidTimeOfDay = errors.New("time of day must contain HH:mm:ss")

var clockPattern = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})`)

// NormalizeTimeOfDay reduces raw to its canonical HH:mm:ss form.  Accepted
// shapes are the canonical form itself, a full ISO timestamp such as
// 2025-11-22T18:20:56.019Z, or any string containing an HH:MM:SS run.  The
// first such run wins.  Empty input yields "" and a nil error so callers can
// store NULL.
func NormalizeTimeOfDay(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	m := clockPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", ErrInvalidTimeOfDay
	}
	if m[1] > "23" || m[2] > "59" || m[3] > "59" {
		return "", ErrInvalidTimeOfDay
	}
	return m[0], nil
}
