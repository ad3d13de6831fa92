package models

import "time"

// AssignmentStatus enumerates the lifecycle of a job assignment. The status
// column is the single serialization point for cross-device writes: every
// transition is a conditional update against the previously observed status.
type AssignmentStatus string

const (
	AssignmentAvailable       AssignmentStatus = "AVAILABLE"
	AssignmentClaimed         AssignmentStatus = "CLAIMED"
	AssignmentPendingApproval AssignmentStatus = "PENDING_APPROVAL"
	AssignmentApproved        AssignmentStatus = "APPROVED"
	AssignmentLocked          AssignmentStatus = "LOCKED"
)

// Terminal reports whether the status admits no further transitions.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentLocked
}

// PricingModel selects how a submission total is computed.
type PricingModel string

const (
	PricingPerUnit PricingModel = "PER_UNIT"
	PricingDayRate PricingModel = "DAY_RATE"
)

// JobAssignment is one unit of assignable work: a job type at a specific plot
// within a project. Created by project setup; transitions are driven only by
// the approval workflow.
type JobAssignment struct {
	ID               string           `db:"id" json:"id"`
	ProjectID        string           `db:"project_id" json:"project_id"`
	PlotID           string           `db:"plot_id" json:"plot_id"`
	JobTypeID        string           `db:"job_type_id" json:"job_type_id"`
	Status           AssignmentStatus `db:"status" json:"status"`
	PricingModel     PricingModel     `db:"pricing_model" json:"pricing_model"`
	UnitType         string           `db:"unit_type" json:"unit_type"`
	DefaultRatePence int64            `db:"default_rate_pence" json:"default_rate_pence"`
	ClaimedBy        *string          `db:"claimed_by" json:"claimed_by,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// AssignmentFilter constrains feed queries.
type AssignmentFilter struct {
	ProjectID string
	Status    []AssignmentStatus
	WorkerID  string
	Limit     int
	Offset    int
}
