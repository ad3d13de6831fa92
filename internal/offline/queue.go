package offline

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/mhollis-dev/fieldops-api/internal/dto"
	"github.com/mhollis-dev/fieldops-api/internal/models"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
)

// Syncer uploads queued mutations and reports the per-mutation outcome.
// The HTTP client implementation talks to the sync endpoints; tests supply
// an in-process fake.
type Syncer interface {
	Sync(ctx context.Context, req dto.PushMutationsRequest) (*dto.DrainResponse, error)
}

// Queue is the device-side offline mutation queue. Mutations accumulate in
// the local store while disconnected and drain to the server in seq order
// once connectivity returns. Drain is idempotent: the server deduplicates on
// (device_id, seq), so a drain interrupted mid-flight can simply run again.
type Queue struct {
	deviceID string
	store    *Store
	syncer   Syncer
	logger   *zap.Logger

	mu       sync.Mutex
	draining bool
}

// NewQueue builds a queue bound to one device identity.
func NewQueue(deviceID string, store *Store, syncer Syncer, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		deviceID: deviceID,
		store:    store,
		syncer:   syncer,
		logger:   logger,
	}
}

// EnqueueSubmit queues a work submission captured while offline.
func (q *Queue) EnqueueSubmit(ctx context.Context, req dto.CreateSubmissionRequest) (int64, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode submission")
	}
	return q.store.Append(ctx, models.MutationSubmit, payload)
}

// EnqueueDecide queues a supervisor decision captured while offline.
func (q *Queue) EnqueueDecide(ctx context.Context, submissionID string, req dto.DecideRequest) (int64, error) {
	payload, err := json.Marshal(dto.DecideMutationPayload{SubmissionID: submissionID, Decision: req})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode decision")
	}
	return q.store.Append(ctx, models.MutationDecide, payload)
}

// Pending returns queued mutations that have not yet synced.
func (q *Queue) Pending(ctx context.Context) ([]Entry, error) {
	return q.store.Unsynced(ctx)
}

// Conflicts returns mutations the server rejected; they stay queued until a
// user resolves or withdraws them.
func (q *Queue) Conflicts(ctx context.Context) ([]Entry, error) {
	return q.store.Conflicts(ctx)
}

// Withdraw removes a not-yet-synced mutation from the queue.
func (q *Queue) Withdraw(ctx context.Context, seq int64) error {
	deleted, err := q.store.Delete(ctx, seq)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw mutation")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrMutationAlreadySynced, "mutation not found or already synced")
	}
	return nil
}

// Drain uploads all unsynced mutations in order and reconciles the local
// store with the server's verdicts. Only one drain runs at a time; a
// concurrent call returns immediately with nothing to do.
func (q *Queue) Drain(ctx context.Context) (*dto.DrainResponse, error) {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return &dto.DrainResponse{DeviceID: q.deviceID}, nil
	}
	q.draining = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	entries, err := q.store.Unsynced(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read queue")
	}
	if len(entries) == 0 {
		return &dto.DrainResponse{DeviceID: q.deviceID}, nil
	}

	req := dto.PushMutationsRequest{DeviceID: q.deviceID}
	for _, entry := range entries {
		req.Mutations = append(req.Mutations, dto.QueuedMutation{
			Seq:     entry.Seq,
			Kind:    entry.Kind,
			Payload: entry.Payload,
		})
	}

	resp, err := q.syncer.Sync(ctx, req)
	if err != nil {
		// Transport failures leave the queue untouched; the next online
		// transition retries the same batch.
		return nil, err
	}

	for _, result := range resp.Results {
		if result.Synced {
			if err := q.store.MarkSynced(ctx, result.Seq); err != nil {
				q.logger.Warn("failed to mark mutation synced", zap.Int64("seq", result.Seq), zap.Error(err))
			}
			continue
		}
		if result.ConflictCode != "" {
			if err := q.store.MarkConflict(ctx, result.Seq, result.ConflictCode, result.ConflictMessage); err != nil {
				q.logger.Warn("failed to record conflict", zap.Int64("seq", result.Seq), zap.Error(err))
			}
		}
	}

	q.logger.Info("offline queue drained",
		zap.String("device_id", q.deviceID),
		zap.Int("replayed", resp.Replayed),
		zap.Int("synced", resp.Synced),
		zap.Int("conflicts", resp.Conflicts))
	return resp, nil
}
