// Package service is the project collaboration façade. Every operation
// resolves the caller, authorizes against the membership store and only then
// touches the project store or the change channel.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/access"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/repository"
	"github.com/GoSim-25-26J-441/project-collab/internal/realtime"
)

type ProjectStore interface {
	CreateProject(ctx context.Context, ownerID string, np domain.NewProject) (*domain.Project, error)
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch, modifiedBy string, hook repository.UpdateHook) (*domain.Project, error)
	DeleteProject(ctx context.Context, id string, hook repository.DeleteHook) error
	ListProjects(ctx context.Context, userID string) ([]domain.Project, error)
}

type MembershipStore interface {
	GetRole(ctx context.Context, projectID, userID string) (domain.Role, error)
	ListMembers(ctx context.Context, projectID string) ([]domain.Member, error)
	AddMember(ctx context.Context, projectID, userID string, role domain.Role) (*domain.Member, error)
	RemoveMember(ctx context.Context, projectID, userID string) error
	EnsureUser(ctx context.Context, id domain.Identity) error
}

type IdentityProvider interface {
	CurrentUser(ctx context.Context) (domain.Identity, error)
	ResolveEmail(ctx context.Context, email string) (string, error)
}

type Service struct {
	projects ProjectStore
	members  MembershipStore
	identity IdentityProvider
	broker   realtime.Broker
	access   *access.Checker
	logger   *zap.Logger
	now      func() time.Time
}

func New(projects ProjectStore, members MembershipStore, identity IdentityProvider, broker realtime.Broker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		projects: projects,
		members:  members,
		identity: identity,
		broker:   broker,
		access:   access.NewChecker(members),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// caller resolves the authenticated user and binds it to ctx for the stores.
func (s *Service) caller(ctx context.Context) (context.Context, domain.Identity, error) {
	id, err := s.identity.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			return ctx, domain.Identity{}, err
		}
		return ctx, domain.Identity{}, domain.Unavailable(err)
	}
	if strings.TrimSpace(id.UserID) == "" {
		return ctx, domain.Identity{}, domain.ErrNotAuthenticated
	}
	return domain.WithCaller(ctx, id.UserID), id, nil
}

// RegisterCaller records the caller in the user directory so others can
// invite them by email.
func (s *Service) RegisterCaller(ctx context.Context) error {
	ctx, me, err := s.caller(ctx)
	if err != nil {
		return domain.E("registerCaller", "", "", err)
	}
	return domain.E("registerCaller", "", me.UserID, s.members.EnsureUser(ctx, me))
}

func (s *Service) ListProjects(ctx context.Context) (_ []domain.Project, err error) {
	defer observe("listProjects", time.Now(), &err)

	ctx, me, err := s.caller(ctx)
	if err != nil {
		return nil, domain.E("listProjects", "", "", err)
	}
	projects, err := s.projects.ListProjects(ctx, me.UserID)
	if err != nil {
		return nil, domain.E("listProjects", "", me.UserID, err)
	}
	return projects, nil
}

func (s *Service) CreateProject(ctx context.Context, np domain.NewProject) (_ *domain.Project, err error) {
	defer observe("createProject", time.Now(), &err)

	ctx, me, err := s.caller(ctx)
	if err != nil {
		return nil, domain.E("createProject", "", "", err)
	}
	if err := validateNew(np); err != nil {
		return nil, domain.E("createProject", "", me.UserID, err)
	}
	if err := s.members.EnsureUser(ctx, me); err != nil {
		return nil, domain.E("createProject", "", me.UserID, err)
	}

	p, err := s.projects.CreateProject(ctx, me.UserID, np)
	if err != nil {
		return nil, domain.E("createProject", "", me.UserID, err)
	}

	s.logger.Info("project created",
		zap.String("project_id", p.ID),
		zap.String("owner_id", me.UserID),
	)
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (_ *domain.Project, err error) {
	defer observe("getProject", time.Now(), &err)

	ctx, me, err := s.caller(ctx)
	if err != nil {
		return nil, domain.E("getProject", id, "", err)
	}
	if _, err := s.access.Authorize(ctx, id, me.UserID, access.ActionViewProject); err != nil {
		return nil, domain.E("getProject", id, me.UserID, err)
	}
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return nil, domain.E("getProject", id, me.UserID, err)
	}
	return p, nil
}

// UpdateProject applies the present fields and publishes the new record to
// every subscriber of the project. The publish runs inside the write, so a
// failed publish fails the update and subscribers see updates in write order.
func (s *Service) UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch) (_ *domain.Project, err error) {
	defer observe("updateProject", time.Now(), &err)

	ctx, me, err := s.caller(ctx)
	if err != nil {
		return nil, domain.E("updateProject", id, "", err)
	}
	if err := validatePatch(patch); err != nil {
		return nil, domain.E("updateProject", id, me.UserID, err)
	}
	if _, err := s.access.Authorize(ctx, id, me.UserID, access.ActionUpdateProject); err != nil {
		return nil, domain.E("updateProject", id, me.UserID, err)
	}

	publish := func(ctx context.Context, p *domain.Project) error {
		return s.broker.Publish(ctx, realtime.Event{
			Type:       realtime.EventUpdated,
			ProjectID:  p.ID,
			Project:    p,
			ActorID:    me.UserID,
			OccurredAt: p.UpdatedAt,
		})
	}

	p, err := s.projects.UpdateProject(ctx, id, patch, me.UserID, publish)
	if err != nil {
		return nil, domain.E("updateProject", id, me.UserID, err)
	}

	s.logger.Debug("project updated",
		zap.String("project_id", id),
		zap.String("user_id", me.UserID),
	)
	return p, nil
}

func (s *Service) DeleteProject(ctx context.Context, id string) (err error) {
	defer observe("deleteProject", time.Now(), &err)

	ctx, me, err := s.caller(ctx)
	if err != nil {
		return domain.E("deleteProject", id, "", err)
	}
	if _, err := s.access.Authorize(ctx, id, me.UserID, access.ActionDeleteProject); err != nil {
		return domain.E("deleteProject", id, me.UserID, err)
	}

	publish := func(ctx context.Context) error {
		return s.broker.Publish(ctx, realtime.Event{
			Type:       realtime.EventDeleted,
			ProjectID:  id,
			ActorID:    me.UserID,
			OccurredAt: s.now(),
		})
	}

	if err := s.projects.DeleteProject(ctx, id, publish); err != nil {
		return domain.E("deleteProject", id, me.UserID, err)
	}

	s.logger.Info("project deleted",
		zap.String("project_id", id),
		zap.String("user_id", me.UserID),
	)
	return nil
}

func (s *Service) ListMembers(ctx context.Context, projectID string) (_ []domain.Member, err error) {
	defer observe("listMembers", time.Now(), &err)

	ctx, me, err := s.caller(ctx)
	if err != nil {
		return nil, domain.E("listMembers", projectID, "", err)
	}
	if _, err := s.access.Authorize(ctx, projectID, me.UserID, access.ActionViewMembers); err != nil {
		return nil, domain.E("listMembers", projectID, me.UserID, err)
	}
	members, err := s.members.ListMembers(ctx, projectID)
	if err != nil {
		return nil, domain.E("listMembers", projectID, me.UserID, err)
	}
	return members, nil
}

// AddMember grants role to the user registered under email.
func (s *Service) AddMember(ctx context.Context, projectID, email string, role domain.Role) (_ *domain.Member, err error) {
	defer observe("addMember", time.Now(), &err)

	ctx, me, err := s.caller(ctx)
	if err != nil {
		return nil, domain.E("addMember", projectID, "", err)
	}
	if _, err := s.access.Authorize(ctx, projectID, me.UserID, access.ActionManageMembers); err != nil {
		return nil, domain.E("addMember", projectID, me.UserID, err)
	}
	if err := access.CanGrant(role); err != nil {
		return nil, domain.E("addMember", projectID, me.UserID, err)
	}

	email = strings.TrimSpace(email)
	userID, err := s.identity.ResolveEmail(ctx, email)
	if err != nil {
		return nil, domain.E("addMember", projectID, "", err)
	}
	if err := s.members.EnsureUser(ctx, domain.Identity{UserID: userID, Email: email}); err != nil {
		return nil, domain.E("addMember", projectID, userID, err)
	}

	m, err := s.members.AddMember(ctx, projectID, userID, role)
	if err != nil {
		return nil, domain.E("addMember", projectID, userID, err)
	}

	s.logger.Info("member added",
		zap.String("project_id", projectID),
		zap.String("user_id", userID),
		zap.Stringer("role", role),
		zap.String("by", me.UserID),
	)
	return m, nil
}

// RemoveMember deletes a non-owner membership. Owner memberships are rejected
// with ErrOwnerProtected whatever the caller's role; removing a user who is
// not a member succeeds without change.
func (s *Service) RemoveMember(ctx context.Context, projectID, userID string) (err error) {
	defer observe("removeMember", time.Now(), &err)

	ctx, me, err := s.caller(ctx)
	if err != nil {
		return domain.E("removeMember", projectID, userID, err)
	}

	callerRole, err := s.access.EffectiveRole(ctx, projectID, me.UserID)
	if err != nil {
		return domain.E("removeMember", projectID, userID, err)
	}
	if callerRole == domain.RoleNone {
		return domain.E("removeMember", projectID, userID,
			fmt.Errorf("%w: caller is not a member", domain.ErrNotAuthorized))
	}

	target, err := s.members.GetRole(ctx, projectID, userID)
	if err != nil {
		return domain.E("removeMember", projectID, userID, err)
	}
	if err := access.CanRemove(target); err != nil {
		return domain.E("removeMember", projectID, userID, err)
	}
	if !access.Allowed(callerRole, access.ActionManageMembers) {
		return domain.E("removeMember", projectID, userID,
			fmt.Errorf("%w: caller is %s, cannot %s", domain.ErrNotAuthorized, callerRole, access.ActionManageMembers))
	}

	if err := s.members.RemoveMember(ctx, projectID, userID); err != nil {
		return domain.E("removeMember", projectID, userID, err)
	}

	if target != domain.RoleNone {
		s.logger.Info("member removed",
			zap.String("project_id", projectID),
			zap.String("user_id", userID),
			zap.String("by", me.UserID),
		)
	}
	return nil
}

// GetEffectiveRole returns userID's role on the project, RoleNone when there
// is no membership. Asking about yourself needs no membership; asking about
// someone else needs permission to view members.
func (s *Service) GetEffectiveRole(ctx context.Context, projectID, userID string) (_ domain.Role, err error) {
	defer observe("getEffectiveRole", time.Now(), &err)

	ctx, me, err := s.caller(ctx)
	if err != nil {
		return domain.RoleNone, domain.E("getEffectiveRole", projectID, userID, err)
	}
	if userID == "" {
		userID = me.UserID
	}

	if userID != me.UserID {
		if _, err := s.access.Authorize(ctx, projectID, me.UserID, access.ActionViewMembers); err != nil {
			return domain.RoleNone, domain.E("getEffectiveRole", projectID, userID, err)
		}
	}

	role, err := s.access.EffectiveRole(ctx, projectID, userID)
	if err != nil {
		return domain.RoleNone, domain.E("getEffectiveRole", projectID, userID, err)
	}
	return role, nil
}

// deliveryCheckTimeout bounds the membership lookup made before each event.
const deliveryCheckTimeout = 5 * time.Second

// SubscribeToProjectChanges opens a subscription to the project's change
// stream. Only events published after it returns are delivered; the caller
// re-fetches current state itself and must release the subscription with
// Unsubscribe. Membership is checked again before every event: once the
// subscriber loses access the handler receives one EventRevoked and nothing
// after it.
func (s *Service) SubscribeToProjectChanges(ctx context.Context, projectID string, h realtime.Handler) (_ *realtime.Subscription, err error) {
	defer observe("subscribe", time.Now(), &err)

	if h == nil {
		return nil, domain.E("subscribe", projectID, "", fmt.Errorf("%w: handler required", domain.ErrInvalidInput))
	}
	ctx, me, err := s.caller(ctx)
	if err != nil {
		return nil, domain.E("subscribe", projectID, "", err)
	}
	if _, err := s.access.Authorize(ctx, projectID, me.UserID, access.ActionSubscribe); err != nil {
		return nil, domain.E("subscribe", projectID, me.UserID, err)
	}

	sub, err := s.broker.Subscribe(ctx, projectID, s.guard(ctx, projectID, me.UserID, h))
	if err != nil {
		return nil, domain.E("subscribe", projectID, me.UserID, domain.Unavailable(err))
	}

	s.logger.Debug("subscribed to project",
		zap.String("project_id", projectID),
		zap.String("user_id", me.UserID),
		zap.String("subscription_id", sub.ID()),
	)
	return sub, nil
}

// guard wraps h so events reach it only while userID may still view the
// project. Deletion events carry no project state and pass unchecked.
func (s *Service) guard(ctx context.Context, projectID, userID string, h realtime.Handler) realtime.Handler {
	// The subscription outlives the request that opened it.
	ctx = context.WithoutCancel(ctx)
	var revoked atomic.Bool

	return func(ev realtime.Event) {
		if revoked.Load() {
			eventsWithheld.WithLabelValues("revoked").Inc()
			return
		}
		if ev.Type == realtime.EventDeleted {
			h(ev)
			return
		}

		checkCtx, cancel := context.WithTimeout(ctx, deliveryCheckTimeout)
		role, err := s.access.EffectiveRole(checkCtx, projectID, userID)
		cancel()
		if err != nil {
			eventsWithheld.WithLabelValues("check_failed").Inc()
			s.logger.Warn("could not confirm subscriber access, withholding event",
				zap.String("project_id", projectID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			return
		}
		if !access.Allowed(role, access.ActionSubscribe) {
			revoked.Store(true)
			eventsWithheld.WithLabelValues("revoked").Inc()
			s.logger.Info("subscriber lost access to project",
				zap.String("project_id", projectID),
				zap.String("user_id", userID),
			)
			h(realtime.Event{
				Type:       realtime.EventRevoked,
				ProjectID:  projectID,
				ActorID:    ev.ActorID,
				OccurredAt: s.now(),
			})
			return
		}
		h(ev)
	}
}

// Unsubscribe releases sub. Releasing an already released subscription is a
// no-op.
func (s *Service) Unsubscribe(sub *realtime.Subscription) error {
	if sub == nil {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		s.logger.Warn("failed to release subscription",
			zap.String("subscription_id", sub.ID()),
			zap.Error(err),
		)
		return domain.E("unsubscribe", sub.ProjectID(), "", domain.Unavailable(err))
	}
	return nil
}

func validateNew(np domain.NewProject) error {
	if strings.TrimSpace(np.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if np.TargetDate.IsZero() {
		return fmt.Errorf("%w: target date is required", domain.ErrInvalidInput)
	}
	return validateTasks(np.Tasks)
}

func validatePatch(pt domain.ProjectPatch) error {
	if pt.Title != nil && strings.TrimSpace(*pt.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", domain.ErrInvalidInput)
	}
	if pt.TargetDate != nil && pt.TargetDate.IsZero() {
		return fmt.Errorf("%w: target date cannot be empty", domain.ErrInvalidInput)
	}
	if pt.Tasks != nil {
		return validateTasks(*pt.Tasks)
	}
	return nil
}

func validateTasks(tasks []domain.Task) error {
	for i, t := range tasks {
		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("%w: task %d has no title", domain.ErrInvalidInput, i)
		}
	}
	return nil
}
