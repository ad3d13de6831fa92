package models

import "time"

// DecisionOutcome enumerates possible supervisor decisions.
type DecisionOutcome string

const (
	DecisionApproved DecisionOutcome = "APPROVED"
	DecisionRejected DecisionOutcome = "REJECTED"
)

// ApprovalDecision records a supervisor action on a submission. Exactly one
// decision exists per submission and it is final.
type ApprovalDecision struct {
	ID                 string          `db:"id" json:"id"`
	SubmissionID       string          `db:"submission_id" json:"submission_id"`
	Outcome            DecisionOutcome `db:"outcome" json:"outcome"`
	Reason             *string         `db:"reason" json:"reason,omitempty"`
	OverrideTotalPence *int64          `db:"override_total_pence" json:"override_total_pence,omitempty"`
	OverrideReason     *string         `db:"override_reason" json:"override_reason,omitempty"`
	DecidedBy          string          `db:"decided_by" json:"decided_by"`
	DecidedAt          time.Time       `db:"decided_at" json:"decided_at"`
}

// DecisionFilter constrains decision listings for the reporting consumer.
type DecisionFilter struct {
	SubmissionID string
	DecidedBy    string
	Outcome      DecisionOutcome
	Limit        int
	Offset       int
}
