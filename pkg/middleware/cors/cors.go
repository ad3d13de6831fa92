package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowedHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID, X-Device-ID"
	allowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	maxAge         = "300"
)

// New returns a CORS middleware restricted to the given origins. An empty
// list allows any origin, which is only sensible in development.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[normalize(origin)] = struct{}{}
	}
	allowAny := len(allowed) == 0

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Set("Vary", "Origin")

		origin := c.GetHeader("Origin")
		switch {
		case origin != "":
			if _, ok := allowed[normalize(origin)]; ok || allowAny {
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Credentials", "true")
			}
		case allowAny:
			header.Set("Access-Control-Allow-Origin", "*")
		}

		if c.Request.Method == http.MethodOptions {
			header.Set("Access-Control-Allow-Headers", allowedHeaders)
			header.Set("Access-Control-Allow-Methods", allowedMethods)
			header.Set("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(origin, "/"))
}
