package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mhollis-dev/fieldops-api/internal/dto"
	"github.com/mhollis-dev/fieldops-api/internal/models"
	"github.com/mhollis-dev/fieldops-api/internal/service"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
	"github.com/mhollis-dev/fieldops-api/pkg/response"
)

// DecisionHandler exposes the approval pipeline endpoints.
type DecisionHandler struct {
	approvals *service.ApprovalService
}

// NewDecisionHandler constructs the handler.
func NewDecisionHandler(approvals *service.ApprovalService) *DecisionHandler {
	return &DecisionHandler{approvals: approvals}
}

// Decide applies an approval or rejection to a pending submission.
func (h *DecisionHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	decision, err := h.approvals.Decide(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, decision)
}

// List returns committed decisions for supervisors and admins.
func (h *DecisionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.DecisionFilter{
		SubmissionID: c.Query("submission_id"),
		DecidedBy:    c.Query("decided_by"),
		Limit:        parseIntQuery(c, "page_size", 50),
	}
	if page := parseIntQuery(c, "page", 1); page > 1 {
		filter.Offset = (page - 1) * filter.Limit
	}

	decisions, err := h.approvals.ListDecisions(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decisions, nil)
}
