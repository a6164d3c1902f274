package http

import "github.com/gin-gonic/gin"

// Register attaches collaboration routes to the given router group.
// The group must already run the auth middleware.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/roles", h.listRoles)

	projects := rg.Group("/projects")
	projects.GET("", h.listProjects)
	projects.POST("", h.createProject)
	projects.GET("/:id", h.getProject)
	projects.PATCH("/:id", h.updateProject)
	projects.DELETE("/:id", h.deleteProject)

	projects.GET("/:id/members", h.listMembers)
	projects.POST("/:id/members", h.addMember)
	projects.DELETE("/:id/members/:user_id", h.removeMember)

	projects.GET("/:id/role", h.effectiveRole)
	projects.GET("/:id/events", h.streamProjectEvents)
}
