package performance

import "time"

type GoalStatus string

const (
	GoalOpen       GoalStatus = "open"
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
	GoalCancelled  GoalStatus = "cancelled"
)

func ValidGoalStatus(s GoalStatus) bool {
	switch s {
	case GoalOpen, GoalInProgress, GoalCompleted, GoalCancelled:
		return true
	}
	return false
}

type Goal struct {
	ID          string     `json:"id"`
	EmployeeID  string     `json:"employeeId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`
	Status      GoalStatus `json:"status"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type Review struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId"`
	ReviewerID string    `json:"reviewerId"`
	Period     string    `json:"period"`
	Rating     int       `json:"rating"`
	Comments   string    `json:"comments,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
