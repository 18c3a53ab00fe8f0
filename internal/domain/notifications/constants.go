package notifications

const (
	TypeLeaveSubmitted = "leave_submitted"
	TypeLeaveApproved  = "leave_approved"
	TypeLeaveRejected  = "leave_rejected"
	TypeLeaveCancelled = "leave_cancelled"
	TypeLeaveRevoked   = "leave_revoked"
	TypeQuotaAssigned  = "quota_assigned"
	TypeGoalCreated    = "goal_created"
	TypeReviewRecorded = "review_recorded"
)
