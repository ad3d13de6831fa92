package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mhollis-dev/fieldops-api/internal/dto"
	"github.com/mhollis-dev/fieldops-api/internal/service"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
	"github.com/mhollis-dev/fieldops-api/pkg/response"
)

// SyncHandler exposes the offline mutation sync endpoints.
type SyncHandler struct {
	sync *service.SyncService
}

// NewSyncHandler constructs the handler.
func NewSyncHandler(sync *service.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Push uploads a batch of queued mutations. Uploads are idempotent per
// (device_id, seq); retransmits of already-stored mutations are ignored.
func (h *SyncHandler) Push(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.PushMutationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	accepted, err := h.sync.Push(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"device_id": req.DeviceID, "accepted": accepted}, nil)
}

// Drain replays a device's unsynced mutations in order.
func (h *SyncHandler) Drain(c *gin.Context) {
	var req dto.DrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	result, err := h.sync.Drain(c.Request.Context(), req.DeviceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Conflicts lists mutations parked after a rejected replay.
func (h *SyncHandler) Conflicts(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "device_id is required"))
		return
	}

	conflicts, err := h.sync.Conflicts(c.Request.Context(), deviceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}

// Withdraw removes a not-yet-replayed mutation from the server queue.
func (h *SyncHandler) Withdraw(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "device_id is required"))
		return
	}
	seq, err := strconv.ParseInt(c.Param("seq"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "seq must be an integer"))
		return
	}

	if err := h.sync.Withdraw(c.Request.Context(), deviceID, seq); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
