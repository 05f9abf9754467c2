package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bioweaver/internal/middleware"
	"github.com/xxxsen/bioweaver/internal/pkg/errcode"
	appErr "github.com/xxxsen/bioweaver/internal/pkg/errors"
	"github.com/xxxsen/bioweaver/internal/pkg/response"
)

// pathID reads a positive int64 path parameter, writing a 400 when it is not one.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryUserID reads the optional user_id filter; 0 means no filter.
func queryUserID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Query("user_id"))
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid user_id")
		return 0, false
	}
	return id, true
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, code, msg := classify(err)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed")
	} else {
		logger.Info("request rejected", zap.Int("status", status))
	}
	response.Error(c, status, code, msg)
}

func classify(err error) (int, int, string) {
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		return http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized"
	case errors.Is(err, appErr.ErrForbidden):
		return http.StatusForbidden, errcode.ErrForbidden, "forbidden"
	case errors.Is(err, appErr.ErrNotFound):
		return http.StatusNotFound, errcode.ErrNotFound, detail(err, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		return http.StatusBadRequest, errcode.ErrInvalid, detail(err, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		return http.StatusBadRequest, errcode.ErrConflict, detail(err, "conflict")
	case errors.Is(err, appErr.ErrPrecondition):
		return http.StatusBadRequest, errcode.ErrNoTranscript, detail(err, "precondition failed")
	case errors.Is(err, appErr.ErrTooMany):
		return http.StatusTooManyRequests, errcode.ErrTooMany, "too many requests"
	default:
		return http.StatusInternalServerError, errcode.ErrInternal, "internal error"
	}
}

// detail keeps the message a service attached with "%w: msg", never internal causes.
func detail(err error, fallback string) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 && idx+2 < len(msg) {
		return msg[idx+2:]
	}
	return fallback
}
