package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mhollis-dev/fieldops-api/internal/models"
)

const decisionColumns = `id, submission_id, outcome, reason, override_total_pence,
       override_reason, decided_by, decided_at`

// DecisionRepository persists approval decisions. The submission_id UNIQUE
// constraint backs the one-decision-per-submission invariant.
type DecisionRepository struct {
	db *sqlx.DB
}

// NewDecisionRepository constructs the repository.
func NewDecisionRepository(db *sqlx.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Create inserts a decision row.
func (r *DecisionRepository) Create(ctx context.Context, decision *models.ApprovalDecision) error {
	if decision.ID == "" {
		decision.ID = uuid.NewString()
	}
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = time.Now().UTC()
	}
	const query = `INSERT INTO approval_decisions
	(id, submission_id, outcome, reason, override_total_pence, override_reason, decided_by, decided_at)
	VALUES (:id, :submission_id, :outcome, :reason, :override_total_pence, :override_reason, :decided_by, :decided_at)`
	if _, err := r.db.NamedExecContext(ctx, query, decision); err != nil {
		return fmt.Errorf("create decision: %w", err)
	}
	return nil
}

// GetBySubmission fetches the decision for a submission.
func (r *DecisionRepository) GetBySubmission(ctx context.Context, submissionID string) (*models.ApprovalDecision, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_decisions WHERE submission_id = $1`, decisionColumns)
	var decision models.ApprovalDecision
	if err := r.db.GetContext(ctx, &decision, query, submissionID); err != nil {
		return nil, err
	}
	return &decision, nil
}

// List returns decisions matching the filter for the reporting consumer.
func (r *DecisionRepository) List(ctx context.Context, filter models.DecisionFilter) ([]models.ApprovalDecision, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM approval_decisions`, decisionColumns))

	conditions := make([]string, 0, 3)
	if filter.SubmissionID != "" {
		args = append(args, filter.SubmissionID)
		conditions = append(conditions, fmt.Sprintf("submission_id = $%d", len(args)))
	}
	if filter.DecidedBy != "" {
		args = append(args, filter.DecidedBy)
		conditions = append(conditions, fmt.Sprintf("decided_by = $%d", len(args)))
	}
	if filter.Outcome != "" {
		args = append(args, filter.Outcome)
		conditions = append(conditions, fmt.Sprintf("outcome = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY decided_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var decisions []models.ApprovalDecision
	if err := r.db.SelectContext(ctx, &decisions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	return decisions, nil
}
