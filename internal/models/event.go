package models

import "time"

// DecisionEvent is emitted after a decision commits. Reporting consumers read
// committed state; the core never renders reports inline with the decision.
type DecisionEvent struct {
	SubmissionID    string          `json:"submission_id"`
	AssignmentID    string          `json:"assignment_id"`
	WorkerID        string          `json:"worker_id"`
	Outcome         DecisionOutcome `json:"outcome"`
	FinalTotalPence int64           `json:"final_total_pence"`
	DecidedBy       string          `json:"decided_by"`
	DecidedAt       time.Time       `json:"decided_at"`
}
