package shared

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate reads a calendar date, with an RFC3339 timestamp accepted
// for callers that send full instants. The empty string parses to the
// zero time so optional fields stay optional.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(dateLayout, value); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
