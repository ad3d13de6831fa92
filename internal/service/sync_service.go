package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mhollis-dev/fieldops-api/internal/dto"
	"github.com/mhollis-dev/fieldops-api/internal/models"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
)

type mutationStore interface {
	Upsert(ctx context.Context, mutation *models.PendingMutation) (bool, error)
	ListUnsynced(ctx context.Context, deviceID string) ([]models.PendingMutation, error)
	ListConflicts(ctx context.Context, deviceID string) ([]models.PendingMutation, error)
	MarkSynced(ctx context.Context, id string) error
	MarkConflict(ctx context.Context, id, code, message string) error
	DeleteUnsynced(ctx context.Context, deviceID string, seq int64) error
}

type submitReplayer interface {
	Submit(ctx context.Context, req dto.CreateSubmissionRequest, workerID string) (*models.WorkSubmission, error)
}

type decideReplayer interface {
	Decide(ctx context.Context, submissionID string, req dto.DecideRequest, supervisorID string) (*models.ApprovalDecision, error)
}

type replayObserver interface {
	ObserveReplay(kind models.MutationKind, result string)
}

// SyncConfig tunes server-side replay.
type SyncConfig struct {
	MaxBatchSize  int
	RetryAttempts int
	RetryDelay    time.Duration
}

// SyncService reconciles device-side offline queues with authoritative state.
// Mutations replay strictly in per-device sequence order through the same
// validation path as online calls. A state conflict or validation failure
// parks only that mutation; the rest of the batch continues. Transient
// storage failures retry a bounded number of times and otherwise leave the
// mutation unsynced for the next drain.
type SyncService struct {
	mutations   mutationStore
	submissions submitReplayer
	approvals   decideReplayer
	metrics     replayObserver
	audit       auditLogger
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         SyncConfig
}

// NewSyncService constructs the service. Metrics and audit are optional.
func NewSyncService(
	mutations mutationStore,
	submissions submitReplayer,
	approvals decideReplayer,
	metrics replayObserver,
	audit auditLogger,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SyncConfig,
) *SyncService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	return &SyncService{
		mutations:   mutations,
		submissions: submissions,
		approvals:   approvals,
		metrics:     metrics,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// Push stores an uploaded batch of queued mutations. Idempotent per
// (device, seq): entries already received are counted but not duplicated.
func (s *SyncService) Push(ctx context.Context, req dto.PushMutationsRequest, actorID string) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mutation batch")
	}
	if len(req.Mutations) > s.cfg.MaxBatchSize {
		return 0, appErrors.Clone(appErrors.ErrValidation, "mutation batch exceeds maximum size")
	}
	accepted := 0
	for _, queued := range req.Mutations {
		switch queued.Kind {
		case models.MutationSubmit, models.MutationDecide:
		default:
			return accepted, appErrors.ErrUnsupportedMutationKind
		}
		inserted, err := s.mutations.Upsert(ctx, &models.PendingMutation{
			DeviceID: req.DeviceID,
			Seq:      queued.Seq,
			Kind:     queued.Kind,
			Payload:  append(json.RawMessage(nil), queued.Payload...),
			ActorID:  actorID,
		})
		if err != nil {
			return accepted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store mutation")
		}
		if inserted {
			accepted++
		}
	}
	return accepted, nil
}

// Drain replays the device's unsynced mutations in sequence order. Safe to
// call repeatedly: synced entries are skipped, conflicted entries stay
// parked until manually resolved.
func (s *SyncService) Drain(ctx context.Context, deviceID string) (*dto.DrainResponse, error) {
	pending, err := s.mutations.ListUnsynced(ctx, deviceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unsynced mutations")
	}

	resp := &dto.DrainResponse{DeviceID: deviceID}
	for i := range pending {
		mutation := &pending[i]
		resp.Replayed++

		replayErr := s.replayWithRetry(ctx, mutation)
		result := dto.MutationResult{Seq: mutation.Seq}
		if replayErr == nil {
			if err := s.mutations.MarkSynced(ctx, mutation.ID); err != nil {
				// Another drain got there first; treat as synced.
				s.logger.Debug("mutation already marked synced", zap.String("mutation_id", mutation.ID))
			}
			result.Synced = true
			resp.Synced++
			s.observe(mutation.Kind, "synced")
		} else {
			appErr := appErrors.FromError(replayErr)
			if appErrors.IsTransient(replayErr) || appErr.Status >= 500 {
				// Storage trouble, not a logical conflict: stop here and let
				// the next drain pick this mutation up again.
				return resp, appErrors.Wrap(replayErr, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "drain interrupted by storage failure")
			}
			if err := s.mutations.MarkConflict(ctx, mutation.ID, appErr.Code, appErr.Message); err != nil {
				s.logger.Error("failed to park conflicted mutation",
					zap.String("mutation_id", mutation.ID), zap.Error(err))
			}
			result.ConflictCode = appErr.Code
			result.ConflictMessage = appErr.Message
			resp.Conflicts++
			s.observe(mutation.Kind, "conflict")
		}
		resp.Results = append(resp.Results, result)
	}

	s.emitAudit(ctx, deviceID, resp)
	return resp, nil
}

// Conflicts lists parked mutations awaiting manual resolution.
func (s *SyncService) Conflicts(ctx context.Context, deviceID string) ([]models.PendingMutation, error) {
	conflicts, err := s.mutations.ListConflicts(ctx, deviceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conflicts")
	}
	return conflicts, nil
}

// Withdraw removes a queued-but-unsynced mutation before it is drained.
func (s *SyncService) Withdraw(ctx context.Context, deviceID string, seq int64) error {
	if err := s.mutations.DeleteUnsynced(ctx, deviceID, seq); err != nil {
		return appErrors.Clone(appErrors.ErrMutationAlreadySynced, "mutation not found or already synced")
	}
	return nil
}

func (s *SyncService) replayWithRetry(ctx context.Context, mutation *models.PendingMutation) error {
	var err error
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return appErrors.Wrap(ctx.Err(), appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "drain cancelled")
			case <-time.After(s.cfg.RetryDelay):
			}
		}
		err = s.replay(ctx, mutation)
		if err == nil || !appErrors.IsTransient(err) {
			return err
		}
		s.logger.Warn("transient replay failure, retrying",
			zap.String("device_id", mutation.DeviceID),
			zap.Int64("seq", mutation.Seq),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return err
}

func (s *SyncService) replay(ctx context.Context, mutation *models.PendingMutation) error {
	switch mutation.Kind {
	case models.MutationSubmit:
		var req dto.CreateSubmissionRequest
		if err := json.Unmarshal(mutation.Payload, &req); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "malformed submission payload")
		}
		_, err := s.submissions.Submit(ctx, req, mutation.ActorID)
		return err
	case models.MutationDecide:
		var payload dto.DecideMutationPayload
		if err := json.Unmarshal(mutation.Payload, &payload); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "malformed decision payload")
		}
		if payload.SubmissionID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "decision payload missing submission id")
		}
		_, err := s.approvals.Decide(ctx, payload.SubmissionID, payload.Decision, mutation.ActorID)
		return err
	default:
		return appErrors.ErrUnsupportedMutationKind
	}
}

func (s *SyncService) observe(kind models.MutationKind, result string) {
	if s.metrics != nil {
		s.metrics.ObserveReplay(kind, result)
	}
}

func (s *SyncService) emitAudit(ctx context.Context, deviceID string, resp *dto.DrainResponse) {
	if s.audit == nil || resp.Replayed == 0 {
		return
	}
	payload, _ := json.Marshal(resp)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		Action:     models.AuditActionSyncDrain,
		Resource:   "device",
		ResourceID: &deviceID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "sync-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
