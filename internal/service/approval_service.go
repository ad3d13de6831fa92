package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mhollis-dev/fieldops-api/internal/dto"
	"github.com/mhollis-dev/fieldops-api/internal/models"
	"github.com/mhollis-dev/fieldops-api/internal/repository"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
)

type decidableSubmissionStore interface {
	GetByID(ctx context.Context, id string) (*models.WorkSubmission, error)
	Finalize(ctx context.Context, params repository.FinalizeParams) error
}

type decisionStore interface {
	Create(ctx context.Context, decision *models.ApprovalDecision) error
	List(ctx context.Context, filter models.DecisionFilter) ([]models.ApprovalDecision, error)
}

type approvalRegistry interface {
	Get(ctx context.Context, id string) (*models.JobAssignment, error)
	MarkApproved(ctx context.Context, id string) error
	MarkAvailable(ctx context.Context, id string) error
}

type decisionPublisher interface {
	Publish(event models.DecisionEvent) error
}

// ApprovalService is the state machine governing submission decisions:
// pending -> approved | rejected, exactly once. A rejection returns the
// assignment to the pool; an approval freezes the final total and moves the
// assignment toward locked.
type ApprovalService struct {
	submissions decidableSubmissionStore
	decisions   decisionStore
	registry    approvalRegistry
	events      decisionPublisher
	audit       auditLogger
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewApprovalService constructs the service. Events and audit are optional.
func NewApprovalService(
	submissions decidableSubmissionStore,
	decisions decisionStore,
	registry approvalRegistry,
	events decisionPublisher,
	audit auditLogger,
	validate *validator.Validate,
	logger *zap.Logger,
) *ApprovalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		submissions: submissions,
		decisions:   decisions,
		registry:    registry,
		events:      events,
		audit:       audit,
		validator:   validate,
		logger:      logger,
	}
}

// Decide applies a supervisor decision to a pending submission.
func (s *ApprovalService) Decide(ctx context.Context, submissionID string, req dto.DecideRequest, supervisorID string) (*models.ApprovalDecision, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	if req.Outcome == models.DecisionRejected && strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.ErrMissingRejectionReason
	}
	if req.OverrideTotalPence != nil {
		if req.Outcome != models.DecisionApproved {
			return nil, appErrors.Clone(appErrors.ErrValidation, "an override only applies to approvals")
		}
		if strings.TrimSpace(req.OverrideReason) == "" {
			return nil, appErrors.ErrMissingOverrideReason
		}
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.Status != models.SubmissionPending {
		return nil, appErrors.ErrAlreadyDecided
	}

	assignment, err := s.registry.Get(ctx, submission.AssignmentID)
	if err != nil {
		return nil, err
	}

	finalTotal := submission.CalculatedTotalPence
	if req.Outcome == models.DecisionApproved {
		// Re-price at decision time; the override takes precedence while the
		// system-computed figure stays on the row.
		quote, err := ComputeTotal(assignment.PricingModel, submission.QuantityCompleted, submission.AgreedRatePence, req.OverrideTotalPence)
		if err != nil {
			return nil, err
		}
		finalTotal = quote.FinalPence
	}

	params := repository.FinalizeParams{
		ID:              submission.ID,
		FinalTotalPence: finalTotal,
	}
	if req.Outcome == models.DecisionApproved {
		params.Status = models.SubmissionApproved
		params.OverrideTotalPence = req.OverrideTotalPence
		if req.OverrideTotalPence != nil {
			reason := strings.TrimSpace(req.OverrideReason)
			params.OverrideReason = &reason
		}
	} else {
		params.Status = models.SubmissionRejected
	}
	if err := s.submissions.Finalize(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the race against another decision; the guard on status
			// keeps replays from double-applying.
			return nil, appErrors.ErrAlreadyDecided
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize submission")
	}

	decision := &models.ApprovalDecision{
		SubmissionID:       submission.ID,
		Outcome:            req.Outcome,
		OverrideTotalPence: params.OverrideTotalPence,
		OverrideReason:     params.OverrideReason,
		DecidedBy:          supervisorID,
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		decision.Reason = &reason
	}
	if err := s.decisions.Create(ctx, decision); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	// The transition can fail after the decision has committed. The decision
	// event published below carries enough for the registry to reconcile the
	// assignment, so a failure here is logged and repaired asynchronously
	// rather than rolled back.
	switch req.Outcome {
	case models.DecisionApproved:
		if err := s.registry.MarkApproved(ctx, submission.AssignmentID); err != nil {
			s.logger.Error("assignment transition after approval failed",
				zap.String("assignment_id", submission.AssignmentID), zap.Error(err))
		}
	case models.DecisionRejected:
		if err := s.registry.MarkAvailable(ctx, submission.AssignmentID); err != nil {
			s.logger.Error("assignment transition after rejection failed",
				zap.String("assignment_id", submission.AssignmentID), zap.Error(err))
		}
	}

	s.publishEvent(submission, decision, finalTotal)
	s.emitAudit(ctx, supervisorID, decision)
	return decision, nil
}

// ListDecisions exposes committed decisions for the reporting consumer.
func (s *ApprovalService) ListDecisions(ctx context.Context, filter models.DecisionFilter, actor *models.JWTClaims) ([]models.ApprovalDecision, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleWorker {
		return nil, appErrors.ErrForbidden
	}
	decisions, err := s.decisions.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list decisions")
	}
	return decisions, nil
}

func (s *ApprovalService) publishEvent(submission *models.WorkSubmission, decision *models.ApprovalDecision, finalTotal int64) {
	if s.events == nil {
		return
	}
	event := models.DecisionEvent{
		SubmissionID:    submission.ID,
		AssignmentID:    submission.AssignmentID,
		WorkerID:        submission.WorkerID,
		Outcome:         decision.Outcome,
		FinalTotalPence: finalTotal,
		DecidedBy:       decision.DecidedBy,
		DecidedAt:       decision.DecidedAt,
	}
	if err := s.events.Publish(event); err != nil {
		s.logger.Warn("failed to publish decision event", zap.Error(err))
	}
}

func (s *ApprovalService) emitAudit(ctx context.Context, supervisorID string, decision *models.ApprovalDecision) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(decision)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &supervisorID,
		Action:     models.AuditActionDecision,
		Resource:   "submission",
		ResourceID: &decision.SubmissionID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "approval-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
