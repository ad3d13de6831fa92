package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhollis-dev/fieldops-api/internal/models"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
)

type exportReaderStub struct {
	submissions []models.WorkSubmission
	err         error
	lastFilter  models.SubmissionFilter
}

func (s *exportReaderStub) List(ctx context.Context, filter models.SubmissionFilter) ([]models.WorkSubmission, error) {
	s.lastFilter = filter
	return s.submissions, s.err
}

type archiveStub struct {
	filenames []string
	sizes     []int
	err       error
}

func (s *archiveStub) Archive(filename string, data []byte) (string, error) {
	s.filenames = append(s.filenames, filename)
	s.sizes = append(s.sizes, len(data))
	if s.err != nil {
		return "", s.err
	}
	return "/exports/" + filename, nil
}

func decidedSubmissions() []models.WorkSubmission {
	return []models.WorkSubmission{
		{
			ID:                   "s-1",
			AssignmentID:         "a-1",
			WorkerID:             "worker-1",
			WorkDate:             "2026-03-14",
			QuantityCompleted:    float64Ptr(25.5),
			AgreedRatePence:      4500,
			CalculatedTotalPence: 114750,
			FinalTotalPence:      114750,
			Status:               models.SubmissionApproved,
		},
		{
			ID:                   "s-2",
			AssignmentID:         "a-2",
			WorkerID:             "worker-2",
			WorkDate:             "2026-03-14",
			AgreedRatePence:      18000,
			CalculatedTotalPence: 18000,
			FinalTotalPence:      18000,
			Status:               models.SubmissionRejected,
		},
		{
			ID:                   "s-3",
			AssignmentID:         "a-3",
			WorkerID:             "worker-1",
			WorkDate:             "2026-03-15",
			AgreedRatePence:      18000,
			CalculatedTotalPence: 18000,
			FinalTotalPence:      20000,
			Status:               models.SubmissionApproved,
		},
	}
}

func TestExportSubmissionsCSV(t *testing.T) {
	reader := &exportReaderStub{submissions: decidedSubmissions()}
	svc := NewExportService(reader, nil, nil)

	result, err := svc.ExportSubmissions(context.Background(), ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "submissions.csv", result.Filename)
	assert.Contains(t, reader.lastFilter.Status, models.SubmissionApproved)
	assert.Contains(t, reader.lastFilter.Status, models.SubmissionRejected)

	records, err := csv.NewReader(bytes.NewReader(result.Content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)

	assert.Equal(t, "Submission", records[0][0])
	assert.Equal(t, []string{"s-1", "a-1", "worker-1", "2026-03-14", "25.5", "45.00", "1147.50", "1147.50", "APPROVED"}, records[1])
	assert.Equal(t, "REJECTED", records[2][8])

	// Footer sums approved finals only: 114750 + 20000.
	footer := records[4]
	assert.Equal(t, "TOTAL (approved)", footer[0])
	assert.Equal(t, "1347.50", footer[7])
}

func TestExportSubmissionsPDF(t *testing.T) {
	reader := &exportReaderStub{submissions: decidedSubmissions()}
	svc := NewExportService(reader, nil, nil)

	result, err := svc.ExportSubmissions(context.Background(), ExportPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "submissions.pdf", result.Filename)
	assert.True(t, bytes.HasPrefix(result.Content, []byte("%PDF")))
}

func TestExportSubmissionsArchives(t *testing.T) {
	reader := &exportReaderStub{submissions: decidedSubmissions()}
	archive := &archiveStub{}
	svc := NewExportService(reader, archive, nil)

	result, err := svc.ExportSubmissions(context.Background(), ExportCSV)
	require.NoError(t, err)
	require.Len(t, archive.filenames, 1)
	assert.Equal(t, "submissions.csv", archive.filenames[0])
	assert.Equal(t, len(result.Content), archive.sizes[0])
}

func TestExportSubmissionsArchiveFailureIsNonFatal(t *testing.T) {
	reader := &exportReaderStub{submissions: decidedSubmissions()}
	archive := &archiveStub{err: errors.New("disk full")}
	svc := NewExportService(reader, archive, nil)

	_, err := svc.ExportSubmissions(context.Background(), ExportCSV)
	require.NoError(t, err)
}

func TestExportSubmissionsUnknownFormat(t *testing.T) {
	reader := &exportReaderStub{submissions: decidedSubmissions()}
	svc := NewExportService(reader, nil, nil)

	_, err := svc.ExportSubmissions(context.Background(), ExportFormat("xlsx"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}
