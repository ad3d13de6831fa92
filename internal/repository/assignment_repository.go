package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mhollis-dev/fieldops-api/internal/models"
)

const assignmentColumns = `id, project_id, plot_id, job_type_id, status, pricing_model,
       unit_type, default_rate_pence, claimed_by, created_at, updated_at`

// AssignmentRepository persists job assignments. All mutating operations are
// conditional updates on the previously observed status, so two devices can
// never push the same assignment into a new state twice: the second writer
// sees zero rows affected and gets sql.ErrNoRows.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// GetByID fetches an assignment by identifier.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*models.JobAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM job_assignments WHERE id = $1`, assignmentColumns)
	var assignment models.JobAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// List returns assignments matching the filter, newest first.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.JobAssignment, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM job_assignments`, assignmentColumns))

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.WorkerID != "" {
		args = append(args, filter.WorkerID)
		conditions = append(conditions, fmt.Sprintf("claimed_by = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var assignments []models.JobAssignment
	if err := r.db.SelectContext(ctx, &assignments, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// CompareAndSwapStatus transitions the assignment to next only when its
// current status is one of expected. ClaimedBy is written through (nil clears
// it). Zero affected rows means another writer got there first and is
// reported as sql.ErrNoRows.
func (r *AssignmentRepository) CompareAndSwapStatus(ctx context.Context, id string, expected []models.AssignmentStatus, next models.AssignmentStatus, claimedBy *string) error {
	if len(expected) == 0 {
		return fmt.Errorf("compare-and-swap requires at least one expected status")
	}
	args := []interface{}{next, claimedBy, time.Now().UTC(), id}
	placeholders := make([]string, len(expected))
	for i, status := range expected {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`UPDATE job_assignments
		SET status = $1, claimed_by = $2, updated_at = $3
		WHERE id = $4 AND status IN (%s)`, strings.Join(placeholders, ","))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("compare-and-swap assignment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check assignment cas rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
