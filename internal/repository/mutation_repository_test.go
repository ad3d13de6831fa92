package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/mhollis-dev/fieldops-api/internal/models"
)

func TestMutationRepositoryUpsertReportsInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewMutationRepository(db)
	mutation := &models.PendingMutation{
		DeviceID: "device-1",
		Seq:      1,
		Kind:     models.MutationSubmit,
		Payload:  json.RawMessage(`{"assignment_id":"a-1"}`),
		ActorID:  "worker-1",
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pending_mutations")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	inserted, err := repo.Upsert(context.Background(), mutation)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NotEmpty(t, mutation.ID)

	// Retransmission hits the (device_id, seq) conflict and affects no rows.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pending_mutations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	inserted, err = repo.Upsert(context.Background(), mutation)
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutationRepositoryListUnsyncedOrdersBySeq(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewMutationRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "device_id", "seq", "kind", "payload", "actor_id", "synced",
		"conflict_code", "conflict_message", "created_at", "synced_at",
	}).
		AddRow("m-1", "device-1", int64(1), "SUBMIT", []byte(`{}`), "worker-1", false, nil, nil, time.Now(), nil).
		AddRow("m-2", "device-1", int64(2), "DECIDE", []byte(`{}`), "worker-1", false, nil, nil, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("synced = FALSE AND conflict_code IS NULL")).
		WithArgs("device-1").
		WillReturnRows(rows)

	list, err := repo.ListUnsynced(context.Background(), "device-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, int64(1), list[0].Seq)
	require.Equal(t, models.MutationDecide, list[1].Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutationRepositoryMarkSyncedGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewMutationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("SET synced = TRUE")).
		WithArgs("m-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkSynced(context.Background(), "m-1"))

	mock.ExpectExec(regexp.QuoteMeta("SET synced = TRUE")).
		WithArgs("m-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkSynced(context.Background(), "m-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutationRepositoryDeleteUnsynced(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewMutationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM pending_mutations")).
		WithArgs("device-1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.DeleteUnsynced(context.Background(), "device-1", 3)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
