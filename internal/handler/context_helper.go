package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mhollis-dev/fieldops-api/internal/middleware"
	"github.com/mhollis-dev/fieldops-api/internal/models"
)

// claimsFromContext returns the identity the JWT middleware stored on the
// request, or nil when the route was reached without authentication. Handlers
// treat nil claims as a 401, not a panic.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
