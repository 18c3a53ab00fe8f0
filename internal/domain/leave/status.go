package leave

import "fmt"

// Status is the lifecycle state of a leave application.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// validTransitions is the single source of truth for the workflow.
// Rejected and cancelled are terminal. Approved leaves can still be
// cancelled (a revoke, which also restores the ledger).
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:  {StatusCancelled},
	StatusRejected:  {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(validTransitions[s]) == 0
}

func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return Status(raw), nil
	}
	return "", fmt.Errorf("unknown leave status %q", raw)
}
