package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mhollis-dev/fieldops-api/internal/models"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
	"github.com/mhollis-dev/fieldops-api/pkg/export"
)

type exportSubmissionReader interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.WorkSubmission, error)
}

type exportArchive interface {
	Archive(filename string, data []byte) (string, error)
}

// ExportFormat selects the rendering for a submissions export.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportResult wraps rendered bytes with response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders committed submissions for the reporting consumer.
// It only reads decided state; formatting choices live in pkg/export.
type ExportService struct {
	submissions exportSubmissionReader
	archive     exportArchive
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs the service. Archive is optional; when set,
// every rendered export is also kept on disk.
func NewExportService(submissions exportSubmissionReader, archive exportArchive, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		submissions: submissions,
		archive:     archive,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

var exportHeaders = []string{"Submission", "Assignment", "Worker", "Work Date", "Quantity", "Rate", "Calculated", "Final", "Status"}

// ExportSubmissions renders all decided submissions in the requested format.
func (s *ExportService) ExportSubmissions(ctx context.Context, format ExportFormat) (*ExportResult, error) {
	submissions, err := s.submissions.List(ctx, models.SubmissionFilter{
		Status: []models.SubmissionStatus{models.SubmissionApproved, models.SubmissionRejected},
		Limit:  200,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions for export")
	}

	dataset := export.Dataset{Headers: exportHeaders}
	var approvedTotal int64
	for i := range submissions {
		sub := &submissions[i]
		quantity := ""
		if sub.QuantityCompleted != nil {
			quantity = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", *sub.QuantityCompleted), "0"), ".")
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Submission": sub.ID,
			"Assignment": sub.AssignmentID,
			"Worker":     sub.WorkerID,
			"Work Date":  string(sub.WorkDate),
			"Quantity":   quantity,
			"Rate":       export.FormatPence(sub.AgreedRatePence),
			"Calculated": export.FormatPence(sub.CalculatedTotalPence),
			"Final":      export.FormatPence(sub.FinalTotalPence),
			"Status":     string(sub.Status),
		})
		if sub.Status == models.SubmissionApproved {
			approvedTotal += sub.FinalTotalPence
		}
	}
	dataset.Footer = map[string]string{
		"Submission": "TOTAL (approved)",
		"Final":      export.FormatPence(approvedTotal),
	}

	var result *ExportResult
	switch format {
	case ExportCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		result = &ExportResult{Content: content, ContentType: "text/csv", Filename: "submissions.csv"}
	case ExportPDF:
		content, err := s.pdf.Render(dataset, "Work Submissions")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		result = &ExportResult{Content: content, ContentType: "application/pdf", Filename: "submissions.pdf"}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	if s.archive != nil {
		if stored, err := s.archive.Archive(result.Filename, result.Content); err != nil {
			s.logger.Warn("failed to archive export", zap.Error(err))
		} else {
			s.logger.Info("export archived", zap.String("path", stored))
		}
	}
	return result, nil
}
