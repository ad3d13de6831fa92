package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/mhollis-dev/fieldops-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func assignmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "project_id", "plot_id", "job_type_id", "status", "pricing_model",
		"unit_type", "default_rate_pence", "claimed_by", "created_at", "updated_at",
	})
}

func TestAssignmentRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	rows := assignmentRows().
		AddRow("a-1", "project-1", "plot-12", "first-fix", "AVAILABLE", "PER_UNIT",
			"linear metre", int64(4500), nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, project_id, plot_id, job_type_id")).
		WithArgs("a-1").
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), "a-1")
	require.NoError(t, err)
	require.Equal(t, "a-1", found.ID)
	require.Equal(t, models.PricingPerUnit, found.PricingModel)
	require.Equal(t, int64(4500), found.DefaultRatePence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	rows := assignmentRows().
		AddRow("a-1", "project-1", "plot-12", "first-fix", "AVAILABLE", "PER_UNIT",
			nil, int64(4500), nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM job_assignments WHERE status IN ($1) AND project_id = $2")).
		WithArgs("AVAILABLE", "project-1").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.AssignmentFilter{
		Status:    []models.AssignmentStatus{models.AssignmentAvailable},
		ProjectID: "project-1",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCompareAndSwap(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	worker := "worker-1"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE job_assignments")).
		WithArgs("CLAIMED", "worker-1", sqlmock.AnyArg(), "a-1", "AVAILABLE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.CompareAndSwapStatus(context.Background(), "a-1",
		[]models.AssignmentStatus{models.AssignmentAvailable}, models.AssignmentClaimed, &worker))

	// Second writer observes zero affected rows.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE job_assignments")).
		WithArgs("CLAIMED", "worker-1", sqlmock.AnyArg(), "a-1", "AVAILABLE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.CompareAndSwapStatus(context.Background(), "a-1",
		[]models.AssignmentStatus{models.AssignmentAvailable}, models.AssignmentClaimed, &worker)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCompareAndSwapRequiresExpected(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	err := repo.CompareAndSwapStatus(context.Background(), "a-1", nil, models.AssignmentClaimed, nil)
	require.Error(t, err)
}
