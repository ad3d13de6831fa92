package offline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhollis-dev/fieldops-api/internal/dto"
	"github.com/mhollis-dev/fieldops-api/internal/models"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
)

type syncerStub struct {
	calls   []dto.PushMutationsRequest
	respond func(req dto.PushMutationsRequest) *dto.DrainResponse
	err     error
}

func (s *syncerStub) Sync(ctx context.Context, req dto.PushMutationsRequest) (*dto.DrainResponse, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	if s.respond != nil {
		return s.respond(req), nil
	}
	resp := &dto.DrainResponse{DeviceID: req.DeviceID}
	for _, m := range req.Mutations {
		resp.Replayed++
		resp.Synced++
		resp.Results = append(resp.Results, dto.MutationResult{Seq: m.Seq, Synced: true})
	}
	return resp, nil
}

func newQueueFixture(t *testing.T) (*Queue, *Store, *syncerStub) {
	t.Helper()
	ctx := context.Background()
	store, err := OpenStore(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	syncer := &syncerStub{}
	return NewQueue("device-1", store, syncer, nil), store, syncer
}

func submitRequest(quantity float64) dto.CreateSubmissionRequest {
	return dto.CreateSubmissionRequest{
		AssignmentID:          "a-1",
		WorkDate:              "2026-03-14",
		QuantityCompleted:     &quantity,
		SafetyChecksCompleted: true,
	}
}

func TestQueueEnqueueAssignsOrderedSeq(t *testing.T) {
	queue, _, _ := newQueueFixture(t)
	ctx := context.Background()

	first, err := queue.EnqueueSubmit(ctx, submitRequest(25.5))
	require.NoError(t, err)
	second, err := queue.EnqueueDecide(ctx, "s-1", dto.DecideRequest{Outcome: models.DecisionApproved})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, models.MutationSubmit, pending[0].Kind)
	assert.Equal(t, models.MutationDecide, pending[1].Kind)

	var payload dto.DecideMutationPayload
	require.NoError(t, json.Unmarshal(pending[1].Payload, &payload))
	assert.Equal(t, "s-1", payload.SubmissionID)
}

func TestQueueDrainMarksSynced(t *testing.T) {
	queue, _, syncer := newQueueFixture(t)
	ctx := context.Background()

	_, err := queue.EnqueueSubmit(ctx, submitRequest(25.5))
	require.NoError(t, err)
	_, err = queue.EnqueueSubmit(ctx, submitRequest(12))
	require.NoError(t, err)

	resp, err := queue.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Synced)
	require.Len(t, syncer.calls, 1)
	assert.Equal(t, "device-1", syncer.calls[0].DeviceID)

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestQueueDrainParksConflicts(t *testing.T) {
	queue, _, syncer := newQueueFixture(t)
	ctx := context.Background()

	seq1, err := queue.EnqueueSubmit(ctx, submitRequest(25.5))
	require.NoError(t, err)
	seq2, err := queue.EnqueueSubmit(ctx, submitRequest(25.5))
	require.NoError(t, err)

	syncer.respond = func(req dto.PushMutationsRequest) *dto.DrainResponse {
		return &dto.DrainResponse{
			DeviceID:  req.DeviceID,
			Replayed:  2,
			Synced:    1,
			Conflicts: 1,
			Results: []dto.MutationResult{
				{Seq: seq1, Synced: true},
				{Seq: seq2, ConflictCode: "EXACT_DUPLICATE", ConflictMessage: "duplicate submission"},
			},
		}
	}

	resp, err := queue.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Conflicts)

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	conflicts, err := queue.Conflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, seq2, conflicts[0].Seq)
	assert.Equal(t, "EXACT_DUPLICATE", conflicts[0].ConflictCode)
}

func TestQueueDrainTransportFailureLeavesQueue(t *testing.T) {
	queue, _, syncer := newQueueFixture(t)
	ctx := context.Background()

	_, err := queue.EnqueueSubmit(ctx, submitRequest(25.5))
	require.NoError(t, err)
	syncer.err = errors.New("connection refused")

	_, err = queue.Drain(ctx)
	require.Error(t, err)

	pending, pendErr := queue.Pending(ctx)
	require.NoError(t, pendErr)
	assert.Len(t, pending, 1)

	syncer.err = nil
	resp, err := queue.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Synced)
}

func TestQueueDrainEmptySkipsUpload(t *testing.T) {
	queue, _, syncer := newQueueFixture(t)

	resp, err := queue.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Replayed)
	assert.Empty(t, syncer.calls)
}

func TestQueueWithdraw(t *testing.T) {
	queue, store, _ := newQueueFixture(t)
	ctx := context.Background()

	seq, err := queue.EnqueueSubmit(ctx, submitRequest(25.5))
	require.NoError(t, err)

	require.NoError(t, queue.Withdraw(ctx, seq))

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	seq2, err := queue.EnqueueSubmit(ctx, submitRequest(12))
	require.NoError(t, err)
	require.NoError(t, store.MarkSynced(ctx, seq2))

	err = queue.Withdraw(ctx, seq2)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrMutationAlreadySynced))
}
