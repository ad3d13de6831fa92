package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// SubmissionStatus enumerates the approval workflow states for a submission.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "PENDING"
	SubmissionApproved SubmissionStatus = "APPROVED"
	SubmissionRejected SubmissionStatus = "REJECTED"
)

// DateOnly is a calendar date in the "2006-01-02" wire form. The backing
// column is a SQL DATE, which lib/pq hands back as time.Time; Scan collapses
// every driver representation to the wire form so date equality is a plain
// string comparison everywhere above the repository.
type DateOnly string

func (d *DateOnly) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = DateOnly(v.Format(time.DateOnly))
	case []byte:
		*d = truncateDate(string(v))
	case string:
		*d = truncateDate(v)
	default:
		return fmt.Errorf("cannot scan %T into DateOnly", value)
	}
	return nil
}

func (d DateOnly) Value() (driver.Value, error) {
	return string(d), nil
}

func truncateDate(raw string) DateOnly {
	if len(raw) > len(time.DateOnly) {
		raw = raw[:len(time.DateOnly)]
	}
	return DateOnly(raw)
}

// WorkSubmission is a worker's claim of completed work against an assignment.
// Rows are never deleted; rejections are preserved for audit and a rejected
// submission is resubmitted as a new row, never edited in place.
//
// CalculatedTotalPence always holds the system-computed figure. When a
// supervisor override is applied, FinalTotalPence carries the override and
// the calculated value is retained untouched.
type WorkSubmission struct {
	ID                    string           `db:"id" json:"id"`
	AssignmentID          string           `db:"assignment_id" json:"assignment_id"`
	WorkerID              string           `db:"worker_id" json:"worker_id"`
	WorkDate              DateOnly         `db:"work_date" json:"work_date"`
	QuantityCompleted     *float64         `db:"quantity_completed" json:"quantity_completed,omitempty"`
	HoursWorked           float64          `db:"hours_worked" json:"hours_worked"`
	AgreedRatePence       int64            `db:"agreed_rate_pence" json:"agreed_rate_pence"`
	CalculatedTotalPence  int64            `db:"calculated_total_pence" json:"calculated_total_pence"`
	FinalTotalPence       int64            `db:"final_total_pence" json:"final_total_pence"`
	OverrideTotalPence    *int64           `db:"override_total_pence" json:"override_total_pence,omitempty"`
	OverrideReason        *string          `db:"override_reason" json:"override_reason,omitempty"`
	SafetyChecksCompleted bool             `db:"safety_checks_completed" json:"safety_checks_completed"`
	Status                SubmissionStatus `db:"status" json:"status"`
	SubmittedAt           time.Time        `db:"submitted_at" json:"submitted_at"`
}

// Open reports whether the submission still blocks its assignment. An
// assignment carries at most one open submission at a time.
func (s *WorkSubmission) Open() bool {
	return s.Status == SubmissionPending
}

// SubmissionFilter constrains listing queries.
type SubmissionFilter struct {
	AssignmentID string
	WorkerID     string
	WorkDate     string
	Status       []SubmissionStatus
	Limit        int
	Offset       int
}
