package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mhollis-dev/fieldops-api/internal/service"
	"github.com/mhollis-dev/fieldops-api/pkg/response"
)

// ReportHandler serves payout exports for decided submissions.
type ReportHandler struct {
	exports *service.ExportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(exports *service.ExportService) *ReportHandler {
	return &ReportHandler{exports: exports}
}

// ExportSubmissions streams decided submissions as CSV or PDF.
func (h *ReportHandler) ExportSubmissions(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))

	result, err := h.exports.ExportSubmissions(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
