package dto

// CreateSubmissionRequest is the payload for reporting completed work.
// Quantity is required for per-unit assignments and ignored for day-rate.
// Rate falls back to the assignment default when omitted.
type CreateSubmissionRequest struct {
	AssignmentID          string   `json:"assignment_id" validate:"required"`
	WorkDate              string   `json:"work_date" validate:"required,datetime=2006-01-02"`
	QuantityCompleted     *float64 `json:"quantity_completed,omitempty"`
	HoursWorked           float64  `json:"hours_worked" validate:"gte=0"`
	AgreedRatePence       *int64   `json:"agreed_rate_pence,omitempty"`
	SafetyChecksCompleted bool     `json:"safety_checks_completed"`
}

// SubmissionQuery mirrors supported listing filters.
type SubmissionQuery struct {
	AssignmentID string
	WorkerID     string
	WorkDate     string
	Status       []string
	Page         int
	PageSize     int
}
