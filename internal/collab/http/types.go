package http

import (
	"time"

	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/service"
)

// Handler bundles the dependencies for collaboration HTTP endpoints.
type Handler struct {
	svc       *service.Service
	keepAlive time.Duration
	logger    *zap.Logger
}

func New(svc *service.Service, keepAlive time.Duration, logger *zap.Logger) *Handler {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, keepAlive: keepAlive, logger: logger}
}

type createProjectReq struct {
	Title      string                 `json:"title"`
	Goal       string                 `json:"goal"`
	TargetDate string                 `json:"target_date"`
	Tasks      []domain.Task          `json:"tasks"`
	Schedule   []domain.ScheduleEntry `json:"schedule"`
}

// updateProjectReq mirrors domain.ProjectPatch; absent fields stay untouched.
type updateProjectReq struct {
	Title      *string                 `json:"title"`
	Goal       *string                 `json:"goal"`
	TargetDate *string                 `json:"target_date"`
	Tasks      *[]domain.Task          `json:"tasks"`
	Schedule   *[]domain.ScheduleEntry `json:"schedule"`
}

type addMemberReq struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

type roleResp struct {
	ProjectID string      `json:"project_id"`
	UserID    string      `json:"user_id"`
	Role      domain.Role `json:"role"`
	Label     string      `json:"label"`
	Color     string      `json:"color"`
}
