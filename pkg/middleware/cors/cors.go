package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowMethods = "GET, POST, PUT, PATCH, OPTIONS"
)

// New returns a CORS middleware for the admin console origins. An empty list
// allows every origin, which is only meant for local development.
func New(allowedOrigins []string) gin.HandlerFunc {
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		headers := c.Writer.Header()
		origin := c.GetHeader("Origin")
		if origin != "" && allowed(originSet, origin) {
			headers.Set("Access-Control-Allow-Origin", origin)
			headers.Set("Access-Control-Allow-Credentials", "true")
		}
		headers.Set("Vary", "Origin")
		headers.Set("Access-Control-Allow-Headers", allowHeaders)
		headers.Set("Access-Control-Allow-Methods", allowMethods)
		headers.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
		headers.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func allowed(originSet map[string]struct{}, origin string) bool {
	if len(originSet) == 0 {
		return true
	}
	_, ok := originSet[strings.TrimRight(origin, "/")]
	return ok
}
