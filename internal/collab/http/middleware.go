package http

import "github.com/gin-gonic/gin"

// SyncCaller upserts the authenticated caller into the user directory so
// owners can invite them by email. Runs after the auth middleware.
func (h *Handler) SyncCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.svc.RegisterCaller(c.Request.Context()); err != nil {
			h.writeError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
