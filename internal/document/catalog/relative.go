package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"naskahlokal/pkg/logger"
)

// ErrInvalidTimestamp is the validation error for dateModified values that cannot be parsed.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// InvalidDateLabel replaces the relative phrase when a timestamp cannot be parsed.
const InvalidDateLabel = "Invalid date"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts ISO 8601 timestamps as written by browsers and by this program.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// RelativeTime describes ts relative to now, e.g. "3 minutes ago" or "yesterday".
// Each unit is capped (59 seconds, 59 minutes, 23 hours, 30 days).
func RelativeTime(ts string, now time.Time) string {
	t, err := ParseTimestamp(ts)
	if err != nil {
		logger.Sugar.Warnf("Invalid date: %v", err)
		return InvalidDateLabel
	}
	return Since(t, now)
}

// Since is RelativeTime for an already parsed time. Times in the future read as "now".
func Since(t, now time.Time) string {
	secs := int64(now.Sub(t) / time.Second)
	if secs < 0 {
		secs = 0
	}

	switch {
	case secs < 60:
		return phrase(min(secs, 59), "second")
	case secs < 3600:
		return phrase(min(secs/60, 59), "minute")
	case secs < 86400:
		return phrase(min(secs/3600, 23), "hour")
	default:
		return phrase(min(secs/86400, 30), "day")
	}
}

func phrase(n int64, unit string) string {
	switch {
	case n == 0 && unit == "second":
		return "now"
	case n == 1 && unit == "day":
		return "yesterday"
	case n == 1:
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
