package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/mhollis-dev/fieldops-api/internal/models"
)

func submissionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "assignment_id", "worker_id", "work_date", "quantity_completed",
		"hours_worked", "agreed_rate_pence", "calculated_total_pence", "final_total_pence",
		"override_total_pence", "override_reason", "safety_checks_completed", "status", "submitted_at",
	})
}

func TestSubmissionRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO work_submissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	quantity := 25.5
	submission := &models.WorkSubmission{
		AssignmentID:          "a-1",
		WorkerID:              "worker-1",
		WorkDate:              "2026-03-14",
		QuantityCompleted:     &quantity,
		AgreedRatePence:       4500,
		CalculatedTotalPence:  114750,
		FinalTotalPence:       114750,
		SafetyChecksCompleted: true,
	}
	require.NoError(t, repo.Create(context.Background(), submission))
	require.NotEmpty(t, submission.ID)
	require.Equal(t, models.SubmissionPending, submission.Status)
	require.False(t, submission.SubmittedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListForDateExcludesRejected(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	rows := submissionRows().
		AddRow("s-1", "a-1", "worker-1", "2026-03-14", 25.5, 8.0, int64(4500),
			int64(114750), int64(114750), nil, nil, true, "PENDING", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("AND status <> $3")).
		WithArgs("a-1", "2026-03-14", "REJECTED").
		WillReturnRows(rows)

	list, err := repo.ListForDate(context.Background(), "a-1", "2026-03-14")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "s-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Postgres DATE columns arrive from the driver as time.Time. Reads must
// normalize that back to the "2006-01-02" wire form or date equality checks
// upstream silently never match.
func TestSubmissionRepositoryListForDateNormalizesDriverDates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	workDate := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	rows := submissionRows().
		AddRow("s-1", "a-1", "worker-1", workDate, 25.5, 8.0, int64(4500),
			int64(114750), int64(114750), nil, nil, true, "PENDING", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("AND status <> $3")).
		WithArgs("a-1", "2026-03-14", "REJECTED").
		WillReturnRows(rows)

	list, err := repo.ListForDate(context.Background(), "a-1", "2026-03-14")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, models.DateOnly("2026-03-14"), list[0].WorkDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryFinalizeGuardsPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	params := FinalizeParams{
		ID:              "s-1",
		Status:          models.SubmissionApproved,
		FinalTotalPence: 114750,
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE work_submissions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Finalize(context.Background(), params))

	// Already decided: the status guard matches nothing.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE work_submissions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Finalize(context.Background(), params)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
