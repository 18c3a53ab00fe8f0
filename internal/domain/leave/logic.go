package leave

import (
	"strings"
	"time"
)

// Clock lets tests pin "today" for date validation.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// maxAdvanceMonths bounds how far ahead leave may start.
const maxAdvanceMonths = 6

// TotalDays counts calendar days from start to end inclusive. A
// single-day leave (start == end) is one day.
func TotalDays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	start = dateOnly(start)
	end = dateOnly(end)
	return int(end.Sub(start).Hours()/24) + 1
}

// FiscalYear is the ledger year a leave belongs to. Consumption at
// approval and restoration at revoke both key on the start date's year,
// so a leave never touches two year rows.
func FiscalYear(start time.Time) int {
	return start.Year()
}

// ValidateRequest applies the submission rules in order: range, past
// start, advance window, reason.
func ValidateRequest(now, start, end time.Time, reason string) error {
	today := dateOnly(now)
	start = dateOnly(start)
	end = dateOnly(end)

	if end.Before(start) {
		return &ValidationError{Field: "endDate", Message: "end date cannot be before start date"}
	}
	if start.Before(today) {
		return &ValidationError{Field: "startDate", Message: "start date cannot be in the past"}
	}
	if start.After(today.AddDate(0, maxAdvanceMonths, 0)) {
		return &ValidationError{Field: "startDate", Message: "leave cannot start more than 6 months ahead"}
	}
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Field: "reason", Message: "reason is required"}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
