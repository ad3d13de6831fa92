package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mhollis-dev/fieldops-api/internal/models"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
	"github.com/mhollis-dev/fieldops-api/pkg/middleware/requestid"
)

// Envelope is the common response contract. Exactly one of Data or Error is
// set; Pagination and Meta are optional.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success envelope with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error maps any error onto the envelope's error shape. The request ID rides
// along in meta so field reports can be matched to server logs.
func Error(c *gin.Context, err error) {
	noStore(c)
	envelope := Envelope{Error: appErrors.FromError(err)}
	if id := requestid.Value(c); id != "" {
		envelope.Meta = map[string]interface{}{"request_id": id}
	}
	c.JSON(envelope.Error.Status, envelope)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
