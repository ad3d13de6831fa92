package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mhollis-dev/fieldops-api/internal/dto"
	"github.com/mhollis-dev/fieldops-api/internal/service"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
	"github.com/mhollis-dev/fieldops-api/pkg/response"
)

// SubmissionHandler exposes work submission endpoints.
type SubmissionHandler struct {
	submissions *service.SubmissionService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(submissions *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// Create records completed work against an assignment.
func (h *SubmissionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	submission, err := h.submissions.Submit(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// List returns submissions visible to the caller. Workers only see their own.
func (h *SubmissionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	query := dto.SubmissionQuery{
		AssignmentID: c.Query("assignment_id"),
		WorkerID:     c.Query("worker_id"),
		WorkDate:     c.Query("work_date"),
		Page:         parseIntQuery(c, "page", 1),
		PageSize:     parseIntQuery(c, "page_size", 50),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				query.Status = append(query.Status, strings.ToUpper(s))
			}
		}
	}

	submissions, err := h.submissions.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// Get returns a single submission.
func (h *SubmissionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	submission, err := h.submissions.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}
