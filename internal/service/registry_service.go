package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mhollis-dev/fieldops-api/internal/dto"
	"github.com/mhollis-dev/fieldops-api/internal/models"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
)

type assignmentStore interface {
	GetByID(ctx context.Context, id string) (*models.JobAssignment, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.JobAssignment, error)
	CompareAndSwapStatus(ctx context.Context, id string, expected []models.AssignmentStatus, next models.AssignmentStatus, claimedBy *string) error
}

type feedCache interface {
	Key(filter models.AssignmentFilter) string
	Get(ctx context.Context, key string) ([]models.JobAssignment, error)
	Set(ctx context.Context, key string, assignments []models.JobAssignment) error
	Invalidate(ctx context.Context) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cacheObserver interface {
	CacheHit()
	CacheMiss()
}

// RegistryService is the system of record for assignment lifecycle state.
// Every transition is one atomic check-and-set on the status column; an
// observed-status mismatch surfaces as a typed conflict, never a merge.
type RegistryService struct {
	assignments assignmentStore
	cache       feedCache
	audit       auditLogger
	metrics     cacheObserver
	logger      *zap.Logger
}

// NewRegistryService constructs the registry. Cache and audit are optional.
func NewRegistryService(assignments assignmentStore, cache feedCache, audit auditLogger, logger *zap.Logger) *RegistryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryService{assignments: assignments, cache: cache, audit: audit, logger: logger}
}

// WithMetrics attaches cache hit/miss instrumentation. Returns the service
// for call chaining during wiring.
func (s *RegistryService) WithMetrics(metrics cacheObserver) *RegistryService {
	s.metrics = metrics
	return s
}

// Feed returns the assignment feed, read through the cache when available.
func (s *RegistryService) Feed(ctx context.Context, query dto.AssignmentQuery) ([]models.JobAssignment, error) {
	filter := models.AssignmentFilter{ProjectID: query.ProjectID}
	for _, raw := range query.Status {
		filter.Status = append(filter.Status, models.AssignmentStatus(raw))
	}
	if query.PageSize > 0 {
		filter.Limit = query.PageSize
	}
	if query.Page > 1 {
		filter.Offset = (query.Page - 1) * filter.Limit
	}

	if s.cache != nil {
		key := s.cache.Key(filter)
		if cached, err := s.cache.Get(ctx, key); err == nil {
			if s.metrics != nil {
				s.metrics.CacheHit()
			}
			return cached, nil
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("feed cache read failed", zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.CacheMiss()
		}
		assignments, err := s.assignments.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
		}
		if err := s.cache.Set(ctx, key, assignments); err != nil {
			s.logger.Warn("feed cache write failed", zap.Error(err))
		}
		return assignments, nil
	}

	assignments, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Get returns a single assignment.
func (s *RegistryService) Get(ctx context.Context, id string) (*models.JobAssignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// Claim moves an available assignment to claimed for the worker. Concurrent
// claims on the same assignment yield exactly one success; the rest see
// ASSIGNMENT_NOT_AVAILABLE.
func (s *RegistryService) Claim(ctx context.Context, id, workerID string) (*models.JobAssignment, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	err := s.assignments.CompareAndSwapStatus(ctx, id, []models.AssignmentStatus{models.AssignmentAvailable}, models.AssignmentClaimed, &workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAssignmentNotAvailable, "assignment already claimed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim assignment")
	}
	s.afterTransition(ctx, id, &workerID, models.AuditActionAssignmentClaim, models.AssignmentClaimed)
	return s.Get(ctx, id)
}

// Release returns a claimed assignment to available. Only the claimant may
// release.
func (s *RegistryService) Release(ctx context.Context, id, workerID string) (*models.JobAssignment, error) {
	assignment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if assignment.ClaimedBy == nil || *assignment.ClaimedBy != workerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment is not claimed by this worker")
	}
	err = s.assignments.CompareAndSwapStatus(ctx, id, []models.AssignmentStatus{models.AssignmentClaimed}, models.AssignmentAvailable, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAssignmentNotAvailable, "assignment is not in a releasable state")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release assignment")
	}
	s.afterTransition(ctx, id, &workerID, "", models.AssignmentAvailable)
	return s.Get(ctx, id)
}

// MarkPending moves an assignment into pending approval as part of accepting
// a submission. Legal only from available or claimed.
func (s *RegistryService) MarkPending(ctx context.Context, id, workerID string) error {
	err := s.assignments.CompareAndSwapStatus(ctx, id,
		[]models.AssignmentStatus{models.AssignmentAvailable, models.AssignmentClaimed},
		models.AssignmentPendingApproval, &workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrAssignmentNotAvailable, "assignment already has an open submission")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark assignment pending")
	}
	s.afterTransition(ctx, id, &workerID, "", models.AssignmentPendingApproval)
	return nil
}

// MarkApproved records an approval outcome on the assignment.
func (s *RegistryService) MarkApproved(ctx context.Context, id string) error {
	err := s.assignments.CompareAndSwapStatus(ctx, id,
		[]models.AssignmentStatus{models.AssignmentPendingApproval}, models.AssignmentApproved, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrAssignmentNotAvailable, "assignment is not pending approval")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve assignment")
	}
	s.afterTransition(ctx, id, nil, "", models.AssignmentApproved)
	return nil
}

// MarkAvailable returns a pending assignment to the pool after a rejection.
func (s *RegistryService) MarkAvailable(ctx context.Context, id string) error {
	err := s.assignments.CompareAndSwapStatus(ctx, id,
		[]models.AssignmentStatus{models.AssignmentPendingApproval}, models.AssignmentAvailable, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrAssignmentNotAvailable, "assignment is not pending approval")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to return assignment to pool")
	}
	s.afterTransition(ctx, id, nil, "", models.AssignmentAvailable)
	return nil
}

// ReconcileDecision forces an assignment into the state a committed decision
// implies. The approval path applies the transition inline; this runs off the
// decision event stream so a transition that failed after the decision
// committed is retried instead of stranding the assignment in pending
// approval. Returning an error keeps the event in the dispatcher's retry
// loop; a no-op return means the inline transition already landed.
func (s *RegistryService) ReconcileDecision(ctx context.Context, event models.DecisionEvent) error {
	assignment, err := s.Get(ctx, event.AssignmentID)
	if err != nil {
		return err
	}
	if assignment.Status != models.AssignmentPendingApproval {
		return nil
	}
	if event.Outcome == models.DecisionApproved {
		return s.MarkApproved(ctx, event.AssignmentID)
	}
	return s.MarkAvailable(ctx, event.AssignmentID)
}

// MarkLocked finishes the lifecycle once external settlement completes.
// Locked is terminal and reachable only from approved.
func (s *RegistryService) MarkLocked(ctx context.Context, id, actorID string) error {
	err := s.assignments.CompareAndSwapStatus(ctx, id,
		[]models.AssignmentStatus{models.AssignmentApproved}, models.AssignmentLocked, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrAssignmentNotAvailable, "assignment is not approved")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock assignment")
	}
	s.afterTransition(ctx, id, &actorID, models.AuditActionAssignmentLock, models.AssignmentLocked)
	return nil
}

func (s *RegistryService) afterTransition(ctx context.Context, id string, actorID *string, auditAction string, next models.AssignmentStatus) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("feed cache invalidation failed", zap.Error(err))
		}
	}
	if s.audit != nil && auditAction != "" {
		payload, _ := json.Marshal(map[string]interface{}{"status": next})
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     actorID,
			Action:     auditAction,
			Resource:   "assignment",
			ResourceID: &id,
			NewValues:  payload,
			IPAddress:  "system",
			UserAgent:  "registry-service",
		}); err != nil {
			s.logger.Warn("failed to persist audit log", zap.Error(err))
		}
	}
}
