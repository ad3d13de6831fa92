package dto

import "github.com/mhollis-dev/fieldops-api/internal/models"

// DecideRequest captures a supervisor decision on a pending submission.
// Reason is required for rejections; an override total requires an override
// reason.
type DecideRequest struct {
	Outcome            models.DecisionOutcome `json:"outcome" validate:"required,oneof=APPROVED REJECTED"`
	Reason             string                 `json:"reason,omitempty"`
	OverrideTotalPence *int64                 `json:"override_total_pence,omitempty"`
	OverrideReason     string                 `json:"override_reason,omitempty"`
}
