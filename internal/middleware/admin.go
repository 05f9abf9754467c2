package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/bioweaver/internal/pkg/errcode"
	"github.com/xxxsen/bioweaver/internal/pkg/response"
)

const HeaderAdminToken = "X-Admin-Token"

// AdminToken gates a route group behind a shared secret. An empty token leaves
// the group open.
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader(HeaderAdminToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "admin token required")
			c.Abort()
			return
		}
		c.Next()
	}
}
