package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

var statusByCode = map[string]int{
	"not_authenticated": http.StatusUnauthorized,
	"not_authorized":    http.StatusForbidden,
	"not_found":         http.StatusNotFound,
	"member_not_found":  http.StatusNotFound,
	"duplicate_member":  http.StatusConflict,
	"owner_protected":   http.StatusConflict,
	"invalid_role":      http.StatusBadRequest,
	"invalid_input":     http.StatusBadRequest,
	"store_unavailable": http.StatusServiceUnavailable,
}

func statusFor(err error) int {
	if s, ok := statusByCode[domain.Code(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"ok": false, "error": ..., "code": ...}.
// Clients localize on code; error is for humans reading logs.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
	}

	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) && status < http.StatusInternalServerError {
		msg = de.Err.Error()
	}
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}

	c.JSON(status, gin.H{
		"ok":        false,
		"error":     msg,
		"code":      domain.Code(err),
		"retryable": domain.Retryable(err),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg, "code": domain.Code(domain.ErrInvalidInput)})
}
