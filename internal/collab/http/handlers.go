package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/project-collab/internal/auth"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

func (h *Handler) listProjects(c *gin.Context) {
	items, err := h.svc.ListProjects(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) createProject(c *gin.Context) {
	var req createProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	target, err := parseDate(req.TargetDate)
	if err != nil {
		badRequest(c, "invalid target_date")
		return
	}

	p, err := h.svc.CreateProject(c.Request.Context(), domain.NewProject{
		Title:      strings.TrimSpace(req.Title),
		Goal:       strings.TrimSpace(req.Goal),
		TargetDate: target,
		Tasks:      req.Tasks,
		Schedule:   req.Schedule,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

func (h *Handler) getProject(c *gin.Context) {
	p, err := h.svc.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) updateProject(c *gin.Context) {
	var req updateProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}

	patch := domain.ProjectPatch{
		Title:    req.Title,
		Goal:     req.Goal,
		Tasks:    req.Tasks,
		Schedule: req.Schedule,
	}
	if req.TargetDate != nil {
		target, err := parseDate(*req.TargetDate)
		if err != nil {
			badRequest(c, "invalid target_date")
			return
		}
		patch.TargetDate = &target
	}

	p, err := h.svc.UpdateProject(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) deleteProject(c *gin.Context) {
	if err := h.svc.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) listMembers(c *gin.Context) {
	members, err := h.svc.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "members": members})
}

func (h *Handler) addMember(c *gin.Context) {
	var req addMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, domain.ErrInvalidRole) {
			h.writeError(c, domain.ErrInvalidRole)
			return
		}
		badRequest(c, "invalid body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		badRequest(c, "email is required")
		return
	}

	m, err := h.svc.AddMember(c.Request.Context(), c.Param("id"), req.Email, req.Role)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "member": m})
}

func (h *Handler) removeMember(c *gin.Context) {
	if err := h.svc.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("user_id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) effectiveRole(c *gin.Context) {
	projectID := c.Param("id")
	userID := strings.TrimSpace(c.Query("user_id"))

	role, err := h.svc.GetEffectiveRole(c.Request.Context(), projectID, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if userID == "" {
		userID = auth.UserID(c)
	}

	info := role.Info()
	c.JSON(http.StatusOK, gin.H{"ok": true, "role": roleResp{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		Label:     info.Label,
		Color:     info.Color,
	}})
}

func (h *Handler) listRoles(c *gin.Context) {
	roles := domain.Roles()
	out := make([]domain.RoleInfo, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.Info())
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "roles": out})
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
