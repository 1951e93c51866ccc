package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
)

// InternalAuthMiddleware guards the operational endpoints called by the
// sweeper. It compares the X-API-Key header with the configured key.
func InternalAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abort(c, errAPINotConfigured)
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			abort(c, errInvalidAPIKey)
			return
		}
		c.Next()
	}
}
