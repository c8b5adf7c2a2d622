package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// bearerTokenMiddleware guards operator endpoints with a static token. An
// empty token disables the endpoint entirely.
func bearerTokenMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			abortWithError(c, NewHTTPError(http.StatusNotFound, "not_found", "endpoint disabled", nil))
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing authorization header", nil))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "invalid authorization header", nil))
			return
		}
		token := strings.TrimSpace(parts[1])
		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			abortWithError(c, NewHTTPError(http.StatusForbidden, "invalid_token", "invalid token", nil))
			return
		}
		c.Next()
	}
}
