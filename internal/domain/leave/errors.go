package leave

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("leave application not found")
	ErrTypeNotFound    = errors.New("leave type not found")
	ErrNoQuota         = errors.New("no leave quota assigned for this year")
	ErrBalanceNotFound = errors.New("leave balance not found")
	ErrInvalidState    = errors.New("leave application is not in a state that allows this action")
	ErrForbidden       = errors.New("not allowed to act on this leave application")
	ErrOverlap         = errors.New("an open leave request already covers part of this range")
	ErrQuotaAssigned   = errors.New("leave quota already assigned for this year")
)

// ValidationError rejects a request before it touches the ledger.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// InsufficientBalanceError carries the numbers the caller needs to show.
type InsufficientBalanceError struct {
	Available int
	Requested int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance: available %d, requested %d", e.Available, e.Requested)
}
