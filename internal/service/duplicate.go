package service

import "github.com/mhollis-dev/fieldops-api/internal/models"

// DuplicateVerdict classifies a candidate submission against the existing
// submissions for the same assignment.
type DuplicateVerdict string

const (
	// DuplicateNone means no collision; the submission may proceed.
	DuplicateNone DuplicateVerdict = "NONE"
	// DuplicateExact means the same worker already has an open submission for
	// this assignment and work date; rejected outright.
	DuplicateExact DuplicateVerdict = "EXACT"
	// DuplicateCrossWorker means a different worker has an open submission for
	// the same assignment and date. Legitimate multi-worker jobs exist, so
	// this escalates to a supervisor instead of auto-rejecting.
	DuplicateCrossWorker DuplicateVerdict = "CONFLICT"
)

// CheckDuplicate decides whether the candidate collides with existing
// submissions on (assignment, work date). Rejected submissions never count:
// a rejection is resubmitted as a new row. Runs before a submission is
// accepted into pending and again during queue replay, since the
// authoritative state may have changed while the device was offline.
func CheckDuplicate(candidate *models.WorkSubmission, existing []models.WorkSubmission) DuplicateVerdict {
	verdict := DuplicateNone
	for i := range existing {
		other := &existing[i]
		if other.Status == models.SubmissionRejected {
			continue
		}
		if other.AssignmentID != candidate.AssignmentID || other.WorkDate != candidate.WorkDate {
			continue
		}
		if other.WorkerID == candidate.WorkerID {
			return DuplicateExact
		}
		verdict = DuplicateCrossWorker
	}
	return verdict
}
