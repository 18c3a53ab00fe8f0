package leave

import "time"

type LeaveType struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Code           string    `json:"code"`
	MaxDaysPerYear int       `json:"maxDaysPerYear"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Balance is one employee-year-type row of the ledger. RemainingDays is
// always AllocatedDays minus UsedDays; every write keeps the three
// columns in step and the schema checks it.
type Balance struct {
	ID            string    `json:"id"`
	EmployeeID    string    `json:"employeeId"`
	LeaveTypeID   string    `json:"leaveTypeId"`
	LeaveTypeName string    `json:"leaveTypeName"`
	Year          int       `json:"year"`
	AllocatedDays int       `json:"allocatedDays"`
	UsedDays      int       `json:"usedDays"`
	RemainingDays int       `json:"remainingDays"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Application struct {
	ID              string     `json:"id"`
	EmployeeID      string     `json:"employeeId"`
	EmployeeName    string     `json:"employeeName,omitempty"`
	LeaveTypeID     string     `json:"leaveTypeId"`
	LeaveTypeName   string     `json:"leaveTypeName,omitempty"`
	StartDate       time.Time  `json:"startDate"`
	EndDate         time.Time  `json:"endDate"`
	TotalDays       int        `json:"totalDays"`
	Reason          string     `json:"reason"`
	Status          Status     `json:"status"`
	ManagerComments string     `json:"managerComments,omitempty"`
	AppliedAt       time.Time  `json:"appliedAt"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy      string     `json:"approvedBy,omitempty"`
}

// Actor identifies who is performing a workflow action.
type Actor struct {
	EmployeeID string
	Role       string
}

type SubmitRequest struct {
	LeaveTypeID string
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
}

// QuotaReport summarizes a bulk quota assignment run.
type QuotaReport struct {
	Assigned int `json:"assigned"`
	Skipped  int `json:"skipped"`
}
