package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	ContextRequestIDKey = "request_id"
	HeaderRequestID     = "X-Request-Id"
)

// RequestID tags every request with an id, reusing the caller's one when sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
		if status := c.Writer.Status(); status >= 500 {
			logutil.GetLogger(c.Request.Context()).Warn("request finished with server error",
				zap.String("request_id", id),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
			)
		}
	}
}
