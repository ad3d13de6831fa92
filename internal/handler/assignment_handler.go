package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mhollis-dev/fieldops-api/internal/dto"
	"github.com/mhollis-dev/fieldops-api/internal/service"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
	"github.com/mhollis-dev/fieldops-api/pkg/response"
)

// AssignmentHandler exposes the assignment feed and lifecycle endpoints.
type AssignmentHandler struct {
	registry *service.RegistryService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(registry *service.RegistryService) *AssignmentHandler {
	return &AssignmentHandler{registry: registry}
}

// Feed lists assignments matching the query filters.
func (h *AssignmentHandler) Feed(c *gin.Context) {
	query := dto.AssignmentQuery{
		ProjectID: c.Query("project_id"),
		Page:      parseIntQuery(c, "page", 1),
		PageSize:  parseIntQuery(c, "page_size", 50),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				query.Status = append(query.Status, strings.ToUpper(s))
			}
		}
	}

	assignments, err := h.registry.Feed(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Get returns a single assignment.
func (h *AssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Claim reserves an available assignment for the calling worker.
func (h *AssignmentHandler) Claim(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	assignment, err := h.registry.Claim(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Release returns a claimed assignment to the pool.
func (h *AssignmentHandler) Release(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	assignment, err := h.registry.Release(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Lock moves an approved assignment into its terminal state.
func (h *AssignmentHandler) Lock(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.registry.MarkLocked(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	assignment, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
