package reconcile

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// SecondsPerDay is the length of a civil day in seconds.
	SecondsPerDay = 86400

	// MaximumScheduleSeconds bounds service-day notation. Schedules may run
	// past midnight with hour tokens above 23, up to 71:59:59.
	MaximumScheduleSeconds = 259199
)

// FormatError reports a single malformed field value. Callers recover from
// it by treating the field as missing rather than aborting the row.
type FormatError struct {
	Field string
	Value string
	cause error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unable to parse %s value %q: %v", e.Field, e.Value, e.cause)
}

func (e *FormatError) Unwrap() error {
	return e.cause
}

// ParseClockString parses a schedule time in the HH:MM:SS format into total
// seconds past midnight of the service day. Times occurring after midnight
// are entered with hour tokens greater than 23, for example 25:35:00 for
// 1:35AM on the next calendar day.
// Returns nil for an empty value rather than an error.
func ParseClockString(value string) (*int, error) {
	value = strings.TrimSpace(value)
	if len(value) == 0 {
		return nil, nil
	}
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return nil, &FormatError{Field: "clock string", Value: value,
			cause: fmt.Errorf("expected HH:MM:SS with two colons")}
	}
	hours, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, &FormatError{Field: "clock string", Value: value, cause: err}
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, &FormatError{Field: "clock string", Value: value, cause: err}
	}
	seconds, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, &FormatError{Field: "clock string", Value: value, cause: err}
	}
	if hours < 0 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 {
		return nil, &FormatError{Field: "clock string", Value: value,
			cause: fmt.Errorf("time component out of range")}
	}
	result := (hours * 60 * 60) + (minutes * 60) + seconds
	if result > MaximumScheduleSeconds {
		return nil, &FormatError{Field: "clock string", Value: value,
			cause: fmt.Errorf("beyond maximum service day seconds %d", MaximumScheduleSeconds)}
	}
	return &result, nil
}

// UnixToLocalSeconds converts an absolute instant to seconds past midnight
// of the calendar day the instant falls on in location loc. Results are
// always in the civil range 0-86399.
func UnixToLocalSeconds(timestamp int64, loc *time.Location) int {
	local := time.Unix(timestamp, 0).In(loc)
	return (local.Hour() * 60 * 60) + (local.Minute() * 60) + local.Second()
}

// ClockString formats seconds past midnight as a zero padded HH:MM:SS
// string, keeping service-day hours above 23 intact. A nil input produces
// an empty string, never a textual "nan".
func ClockString(seconds *int) string {
	if seconds == nil {
		return ""
	}
	s := *seconds
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// WallClockString formats seconds past midnight as HH:MM:SS on a single
// civil day, wrapping service-day hours above 23 onto the next day.
// A nil input produces an empty string.
func WallClockString(seconds *int) string {
	if seconds == nil {
		return ""
	}
	wrapped := *seconds % SecondsPerDay
	return ClockString(&wrapped)
}

// NormalizeOverflowHour rewrites a leading hour token of 24 or above down
// onto the next civil day, so 24:10:00 becomes 00:10:00 and 27:45:30
// becomes 03:45:30. Used for join-key compatibility between feeds that
// encode past-midnight stops differently. Values without an overflowing
// hour token are returned unchanged.
func NormalizeOverflowHour(value string) string {
	idx := strings.Index(value, ":")
	if idx < 0 {
		return value
	}
	hours, err := strconv.Atoi(value[:idx])
	if err != nil || hours < 24 {
		return value
	}
	return fmt.Sprintf("%02d%s", hours-24, value[idx:])
}
