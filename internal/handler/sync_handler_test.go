package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhollis-dev/fieldops-api/internal/dto"
	"github.com/mhollis-dev/fieldops-api/internal/middleware"
	"github.com/mhollis-dev/fieldops-api/internal/models"
	"github.com/mhollis-dev/fieldops-api/internal/service"
)

type mutationStoreFake struct {
	mutations map[string]*models.PendingMutation
	nextID    int
}

func (s *mutationStoreFake) key(deviceID string, seq int64) string {
	return fmt.Sprintf("%s/%d", deviceID, seq)
}

func (s *mutationStoreFake) Upsert(ctx context.Context, mutation *models.PendingMutation) (bool, error) {
	k := s.key(mutation.DeviceID, mutation.Seq)
	if _, ok := s.mutations[k]; ok {
		return false, nil
	}
	s.nextID++
	mutation.ID = fmt.Sprintf("m-%d", s.nextID)
	clone := *mutation
	s.mutations[k] = &clone
	return true, nil
}

func (s *mutationStoreFake) ListUnsynced(ctx context.Context, deviceID string) ([]models.PendingMutation, error) {
	var result []models.PendingMutation
	for _, m := range s.mutations {
		if m.DeviceID == deviceID && !m.Synced && !m.Conflicted() {
			result = append(result, *m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result, nil
}

func (s *mutationStoreFake) ListConflicts(ctx context.Context, deviceID string) ([]models.PendingMutation, error) {
	var result []models.PendingMutation
	for _, m := range s.mutations {
		if m.DeviceID == deviceID && m.Conflicted() {
			result = append(result, *m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result, nil
}

func (s *mutationStoreFake) MarkSynced(ctx context.Context, id string) error {
	for _, m := range s.mutations {
		if m.ID == id {
			m.Synced = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *mutationStoreFake) MarkConflict(ctx context.Context, id, code, message string) error {
	for _, m := range s.mutations {
		if m.ID == id {
			m.ConflictCode = &code
			m.ConflictMessage = &message
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *mutationStoreFake) DeleteUnsynced(ctx context.Context, deviceID string, seq int64) error {
	k := s.key(deviceID, seq)
	if m, ok := s.mutations[k]; ok && !m.Synced {
		delete(s.mutations, k)
		return nil
	}
	return sql.ErrNoRows
}

func newSyncHandlerFixture() (*SyncHandler, *mutationStoreFake, *submissionStoreFake) {
	assignments := &assignmentStoreFake{assignments: map[string]*models.JobAssignment{
		"a-1": {
			ID:               "a-1",
			ProjectID:        "project-1",
			Status:           models.AssignmentAvailable,
			PricingModel:     models.PricingPerUnit,
			DefaultRatePence: 4500,
		},
	}}
	submissionStore := &submissionStoreFake{submissions: make(map[string]*models.WorkSubmission)}
	registry := service.NewRegistryService(assignments, nil, nil, nil)
	submissions := service.NewSubmissionService(submissionStore, registry, nil, nil, nil)
	mutations := &mutationStoreFake{mutations: make(map[string]*models.PendingMutation)}
	sync := service.NewSyncService(mutations, submissions, nil, nil, nil, nil, nil, service.SyncConfig{
		MaxBatchSize:  10,
		RetryAttempts: 1,
		RetryDelay:    1,
	})
	return NewSyncHandler(sync), mutations, submissionStore
}

func syncRequest(t *testing.T, method, target string, body interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	return rec, c
}

func submitMutation(t *testing.T, seq int64) dto.QueuedMutation {
	t.Helper()
	payload, err := json.Marshal(dto.CreateSubmissionRequest{
		AssignmentID:          "a-1",
		WorkDate:              "2026-03-14",
		QuantityCompleted:     float64Ptr(25.5),
		SafetyChecksCompleted: true,
	})
	require.NoError(t, err)
	return dto.QueuedMutation{Seq: seq, Kind: models.MutationSubmit, Payload: payload}
}

func float64Ptr(v float64) *float64 { return &v }

func TestSyncHandlerPushAcceptsBatch(t *testing.T) {
	handler, mutations, _ := newSyncHandlerFixture()

	rec, c := syncRequest(t, http.MethodPost, "/sync/mutations", dto.PushMutationsRequest{
		DeviceID:  "device-1",
		Mutations: []dto.QueuedMutation{submitMutation(t, 1), submitMutation(t, 2)},
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "worker-1", Role: models.RoleWorker})

	handler.Push(c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, float64(2), envelope.Data["accepted"])
	assert.Len(t, mutations.mutations, 2)
}

func TestSyncHandlerPushIsIdempotent(t *testing.T) {
	handler, mutations, _ := newSyncHandlerFixture()

	first, c1 := syncRequest(t, http.MethodPost, "/sync/mutations", dto.PushMutationsRequest{
		DeviceID:  "device-1",
		Mutations: []dto.QueuedMutation{submitMutation(t, 7)},
	})
	c1.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "worker-1", Role: models.RoleWorker})
	handler.Push(c1)
	require.Equal(t, http.StatusAccepted, first.Code)

	second, c2 := syncRequest(t, http.MethodPost, "/sync/mutations", dto.PushMutationsRequest{
		DeviceID:  "device-1",
		Mutations: []dto.QueuedMutation{submitMutation(t, 7)},
	})
	c2.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "worker-1", Role: models.RoleWorker})
	handler.Push(c2)

	assert.Equal(t, http.StatusAccepted, second.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &envelope))
	assert.Equal(t, float64(0), envelope.Data["accepted"])
	assert.Len(t, mutations.mutations, 1)
}

func TestSyncHandlerPushRequiresAuth(t *testing.T) {
	handler, _, _ := newSyncHandlerFixture()

	rec, c := syncRequest(t, http.MethodPost, "/sync/mutations", dto.PushMutationsRequest{
		DeviceID:  "device-1",
		Mutations: []dto.QueuedMutation{submitMutation(t, 1)},
	})

	handler.Push(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSyncHandlerDrainReplaysQueue(t *testing.T) {
	handler, mutations, submissionStore := newSyncHandlerFixture()

	pushRec, pushCtx := syncRequest(t, http.MethodPost, "/sync/mutations", dto.PushMutationsRequest{
		DeviceID:  "device-1",
		Mutations: []dto.QueuedMutation{submitMutation(t, 1)},
	})
	pushCtx.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "worker-1", Role: models.RoleWorker})
	handler.Push(pushCtx)
	require.Equal(t, http.StatusAccepted, pushRec.Code)

	rec, c := syncRequest(t, http.MethodPost, "/sync/drain", dto.DrainRequest{DeviceID: "device-1"})
	handler.Drain(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data dto.DrainResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Replayed)
	assert.Equal(t, 1, resp.Data.Synced)
	assert.Equal(t, 0, resp.Data.Conflicts)
	assert.Len(t, submissionStore.submissions, 1)

	unsynced, err := mutations.ListUnsynced(context.Background(), "device-1")
	require.NoError(t, err)
	assert.Empty(t, unsynced)
}

func TestSyncHandlerConflictsRequiresDeviceID(t *testing.T) {
	handler, _, _ := newSyncHandlerFixture()

	rec, c := syncRequest(t, http.MethodGet, "/sync/conflicts", nil)
	handler.Conflicts(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncHandlerWithdraw(t *testing.T) {
	handler, _, _ := newSyncHandlerFixture()

	pushRec, pushCtx := syncRequest(t, http.MethodPost, "/sync/mutations", dto.PushMutationsRequest{
		DeviceID:  "device-1",
		Mutations: []dto.QueuedMutation{submitMutation(t, 3)},
	})
	pushCtx.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "worker-1", Role: models.RoleWorker})
	handler.Push(pushCtx)
	require.Equal(t, http.StatusAccepted, pushRec.Code)

	rec, c := syncRequest(t, http.MethodDelete, "/sync/mutations/3?device_id=device-1", nil)
	c.Params = gin.Params{{Key: "seq", Value: "3"}}
	handler.Withdraw(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	again, c2 := syncRequest(t, http.MethodDelete, "/sync/mutations/3?device_id=device-1", nil)
	c2.Params = gin.Params{{Key: "seq", Value: "3"}}
	handler.Withdraw(c2)
	assert.Equal(t, http.StatusConflict, again.Code)
}
