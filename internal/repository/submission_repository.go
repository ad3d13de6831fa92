package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mhollis-dev/fieldops-api/internal/models"
)

const submissionColumns = `id, assignment_id, worker_id, work_date, quantity_completed,
       hours_worked, agreed_rate_pence, calculated_total_pence, final_total_pence,
       override_total_pence, override_reason, safety_checks_completed, status, submitted_at`

// SubmissionRepository persists work submissions. Rows are append-only apart
// from the single pending->decided transition; nothing is ever deleted.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new submission row.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.WorkSubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionPending
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO work_submissions
	(id, assignment_id, worker_id, work_date, quantity_completed, hours_worked,
	 agreed_rate_pence, calculated_total_pence, final_total_pence, override_total_pence,
	 override_reason, safety_checks_completed, status, submitted_at)
	VALUES (:id, :assignment_id, :worker_id, :work_date, :quantity_completed, :hours_worked,
	 :agreed_rate_pence, :calculated_total_pence, :final_total_pence, :override_total_pence,
	 :override_reason, :safety_checks_completed, :status, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission by identifier.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.WorkSubmission, error) {
	query := fmt.Sprintf(`SELECT %s FROM work_submissions WHERE id = $1`, submissionColumns)
	var submission models.WorkSubmission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// List returns submissions matching the filter (latest first).
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.WorkSubmission, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 5)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM work_submissions`, submissionColumns))

	conditions := make([]string, 0, 4)
	if filter.AssignmentID != "" {
		args = append(args, filter.AssignmentID)
		conditions = append(conditions, fmt.Sprintf("assignment_id = $%d", len(args)))
	}
	if filter.WorkerID != "" {
		args = append(args, filter.WorkerID)
		conditions = append(conditions, fmt.Sprintf("worker_id = $%d", len(args)))
	}
	if filter.WorkDate != "" {
		args = append(args, filter.WorkDate)
		conditions = append(conditions, fmt.Sprintf("work_date = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY submitted_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var submissions []models.WorkSubmission
	if err := r.db.SelectContext(ctx, &submissions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// ListForDate returns all non-rejected submissions for the assignment and
// work date, the read model the duplicate detector runs against.
func (r *SubmissionRepository) ListForDate(ctx context.Context, assignmentID, workDate string) ([]models.WorkSubmission, error) {
	query := fmt.Sprintf(`SELECT %s FROM work_submissions
		WHERE assignment_id = $1 AND work_date = $2 AND status <> $3
		ORDER BY submitted_at ASC`, submissionColumns)
	var submissions []models.WorkSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID, workDate, models.SubmissionRejected); err != nil {
		return nil, fmt.Errorf("list submissions for date: %w", err)
	}
	return submissions, nil
}

// FinalizeParams groups the columns frozen by a decision.
type FinalizeParams struct {
	ID                 string
	Status             models.SubmissionStatus
	FinalTotalPence    int64
	OverrideTotalPence *int64
	OverrideReason     *string
}

// Finalize applies a decision outcome to a pending submission. The WHERE
// guard on status makes re-decisions report sql.ErrNoRows instead of
// double-applying, which upstream maps to ALREADY_DECIDED.
func (r *SubmissionRepository) Finalize(ctx context.Context, params FinalizeParams) error {
	const query = `UPDATE work_submissions
		SET status = :status,
		    final_total_pence = :final_total_pence,
		    override_total_pence = :override_total_pence,
		    override_reason = :override_reason
		WHERE id = :id AND status = :pending`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                   params.ID,
		"status":               params.Status,
		"final_total_pence":    params.FinalTotalPence,
		"override_total_pence": params.OverrideTotalPence,
		"override_reason":      params.OverrideReason,
		"pending":              models.SubmissionPending,
	})
	if err != nil {
		return fmt.Errorf("finalize submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check finalize rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
