package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mhollis-dev/fieldops-api/internal/dto"
	"github.com/mhollis-dev/fieldops-api/internal/models"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
)

type submissionStore interface {
	Create(ctx context.Context, submission *models.WorkSubmission) error
	GetByID(ctx context.Context, id string) (*models.WorkSubmission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.WorkSubmission, error)
	ListForDate(ctx context.Context, assignmentID, workDate string) ([]models.WorkSubmission, error)
}

type assignmentRegistry interface {
	Get(ctx context.Context, id string) (*models.JobAssignment, error)
	MarkPending(ctx context.Context, id, workerID string) error
	MarkAvailable(ctx context.Context, id string) error
}

// SubmissionService runs the submission pipeline: duplicate check, pricing,
// then the registry's atomic pending transition, then the append. The same
// path serves direct online calls and queue replay, so a replayed mutation is
// validated against current authoritative state, not the state the device saw.
type SubmissionService struct {
	submissions submissionStore
	registry    assignmentRegistry
	audit       auditLogger
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSubmissionService constructs the service.
func NewSubmissionService(submissions submissionStore, registry assignmentRegistry, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		submissions: submissions,
		registry:    registry,
		audit:       audit,
		validator:   validate,
		logger:      logger,
	}
}

// Submit validates and commits a work submission for the worker.
func (s *SubmissionService) Submit(ctx context.Context, req dto.CreateSubmissionRequest, workerID string) (*models.WorkSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if !req.SafetyChecksCompleted {
		return nil, appErrors.ErrSafetyChecksIncomplete
	}

	assignment, err := s.registry.Get(ctx, req.AssignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.Status.Terminal() {
		return nil, appErrors.ErrAssignmentLocked
	}

	rate := assignment.DefaultRatePence
	if req.AgreedRatePence != nil {
		rate = *req.AgreedRatePence
	}

	candidate := &models.WorkSubmission{
		AssignmentID:          assignment.ID,
		WorkerID:              workerID,
		WorkDate:              models.DateOnly(req.WorkDate),
		QuantityCompleted:     req.QuantityCompleted,
		HoursWorked:           req.HoursWorked,
		AgreedRatePence:       rate,
		SafetyChecksCompleted: req.SafetyChecksCompleted,
		Status:                models.SubmissionPending,
	}

	existing, err := s.submissions.ListForDate(ctx, assignment.ID, req.WorkDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing submissions")
	}
	switch CheckDuplicate(candidate, existing) {
	case DuplicateExact:
		return nil, appErrors.ErrExactDuplicate
	case DuplicateCrossWorker:
		return nil, appErrors.ErrDuplicateConflict
	}

	quote, err := ComputeTotal(assignment.PricingModel, req.QuantityCompleted, rate, nil)
	if err != nil {
		return nil, err
	}
	candidate.CalculatedTotalPence = quote.CalculatedPence
	candidate.FinalTotalPence = quote.FinalPence

	if err := s.registry.MarkPending(ctx, assignment.ID, workerID); err != nil {
		return nil, err
	}

	if err := s.submissions.Create(ctx, candidate); err != nil {
		// Best effort: put the assignment back so the failed append does not
		// strand it in pending with no open submission.
		if revertErr := s.registry.MarkAvailable(ctx, assignment.ID); revertErr != nil {
			s.logger.Error("failed to revert assignment after create failure",
				zap.String("assignment_id", assignment.ID), zap.Error(revertErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}

	s.emitAudit(ctx, workerID, candidate)
	return candidate, nil
}

// List returns submissions visible to the actor. Workers only see their own.
func (s *SubmissionService) List(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.WorkSubmission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.SubmissionFilter{
		AssignmentID: query.AssignmentID,
		WorkDate:     query.WorkDate,
		WorkerID:     query.WorkerID,
	}
	for _, raw := range query.Status {
		filter.Status = append(filter.Status, models.SubmissionStatus(raw))
	}
	if actor.Role == models.RoleWorker {
		filter.WorkerID = actor.UserID
	}
	if query.PageSize > 0 {
		filter.Limit = query.PageSize
	}
	if query.Page > 1 {
		filter.Offset = (query.Page - 1) * filter.Limit
	}
	submissions, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Get returns a submission enforcing scope constraints.
func (s *SubmissionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.WorkSubmission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if actor.Role == models.RoleWorker && submission.WorkerID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return submission, nil
}

func (s *SubmissionService) emitAudit(ctx context.Context, workerID string, submission *models.WorkSubmission) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(submission)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &workerID,
		Action:     models.AuditActionSubmissionCreate,
		Resource:   "submission",
		ResourceID: &submission.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "submission-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
