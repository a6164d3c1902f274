package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

// store is the method set both implementations share.
type store interface {
	EnsureUser(ctx context.Context, id domain.Identity) error
	FindUserByEmail(ctx context.Context, email string) (string, error)
	CreateProject(ctx context.Context, ownerID string, np domain.NewProject) (*domain.Project, error)
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch, modifiedBy string, hook UpdateHook) (*domain.Project, error)
	DeleteProject(ctx context.Context, id string, hook DeleteHook) error
	ListProjects(ctx context.Context, userID string) ([]domain.Project, error)
	GetRole(ctx context.Context, projectID, userID string) (domain.Role, error)
	ListMembers(ctx context.Context, projectID string) ([]domain.Member, error)
	AddMember(ctx context.Context, projectID, userID string, role domain.Role) (*domain.Member, error)
	RemoveMember(ctx context.Context, projectID, userID string) error
}

type users struct {
	owner, editor, viewer, stranger domain.Identity
}

// newUsers returns identities unique to this run so suites can share a
// database.
func newUsers(t *testing.T, ctx context.Context, s store) users {
	t.Helper()
	suffix := uuid.NewString()[:8]
	u := users{
		owner:    domain.Identity{UserID: "owner-" + suffix, Email: "owner-" + suffix + "@example.com"},
		editor:   domain.Identity{UserID: "editor-" + suffix, Email: "editor-" + suffix + "@example.com"},
		viewer:   domain.Identity{UserID: "viewer-" + suffix, Email: "viewer-" + suffix + "@example.com"},
		stranger: domain.Identity{UserID: "stranger-" + suffix, Email: "stranger-" + suffix + "@example.com"},
	}
	for _, id := range []domain.Identity{u.owner, u.editor, u.viewer, u.stranger} {
		require.NoError(t, s.EnsureUser(ctx, id))
	}
	return u
}

func as(ctx context.Context, id domain.Identity) context.Context {
	return domain.WithCaller(ctx, id.UserID)
}

func newProject(title string) domain.NewProject {
	return domain.NewProject{
		Title:      title,
		Goal:       "goal of " + title,
		TargetDate: time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC),
		Tasks: []domain.Task{
			{ID: "t1", Title: "first", EstimateDays: 2},
			{ID: "t2", Title: "second", Completed: true},
		},
	}
}

func countOwners(members []domain.Member) int {
	n := 0
	for _, m := range members {
		if m.Role == domain.RoleOwner {
			n++
		}
	}
	return n
}

func runStoreSuite(t *testing.T, s store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		u := newUsers(t, ctx, s)
		octx := as(ctx, u.owner)
		np := newProject("round trip")

		created, err := s.CreateProject(octx, u.owner.UserID, np)
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		got, err := s.GetProject(octx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, np.Title, got.Title)
		assert.Equal(t, np.Goal, got.Goal)
		assert.True(t, np.TargetDate.Equal(got.TargetDate))
		assert.Equal(t, np.Tasks, got.Tasks)
		assert.Empty(t, got.Schedule)
		assert.Equal(t, u.owner.UserID, got.OwnerID)
		assert.Equal(t, u.owner.UserID, got.LastModifiedBy)

		role, err := s.GetRole(octx, created.ID, u.owner.UserID)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleOwner, role)

		members, err := s.ListMembers(octx, created.ID)
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, u.owner.Email, members[0].Email)
		assert.Equal(t, 1, countOwners(members))
	})

	t.Run("create for unknown owner", func(t *testing.T) {
		ghost := domain.Identity{UserID: "ghost-" + uuid.NewString()[:8]}
		_, err := s.CreateProject(as(ctx, ghost), ghost.UserID, newProject("orphan"))
		assert.ErrorIs(t, err, domain.ErrNotFound)

		projects, err := s.ListProjects(as(ctx, ghost), ghost.UserID)
		require.NoError(t, err)
		assert.Empty(t, projects)
	})

	t.Run("partial update runs hook with new state", func(t *testing.T) {
		u := newUsers(t, ctx, s)
		p, err := s.CreateProject(as(ctx, u.owner), u.owner.UserID, newProject("partial"))
		require.NoError(t, err)
		_, err = s.AddMember(as(ctx, u.owner), p.ID, u.editor.UserID, domain.RoleEditor)
		require.NoError(t, err)

		title := "renamed"
		var hooked *domain.Project
		updated, err := s.UpdateProject(as(ctx, u.editor), p.ID, domain.ProjectPatch{Title: &title}, u.editor.UserID,
			func(_ context.Context, next *domain.Project) error {
				hooked = next
				return nil
			})
		require.NoError(t, err)
		require.NotNil(t, hooked)

		assert.Equal(t, "renamed", updated.Title)
		assert.Equal(t, p.Goal, updated.Goal)
		assert.Equal(t, p.Tasks, updated.Tasks)
		assert.Equal(t, u.editor.UserID, updated.LastModifiedBy)
		assert.Equal(t, u.owner.UserID, updated.OwnerID)
		assert.False(t, updated.UpdatedAt.Before(p.UpdatedAt))
		assert.Equal(t, updated.Title, hooked.Title)
		assert.Equal(t, updated.LastModifiedBy, hooked.LastModifiedBy)
	})

	t.Run("failing hook aborts update", func(t *testing.T) {
		u := newUsers(t, ctx, s)
		octx := as(ctx, u.owner)
		p, err := s.CreateProject(octx, u.owner.UserID, newProject("abort"))
		require.NoError(t, err)

		boom := errors.New("publish failed")
		title := "never"
		_, err = s.UpdateProject(octx, p.ID, domain.ProjectPatch{Title: &title}, u.owner.UserID,
			func(context.Context, *domain.Project) error { return boom })
		assert.ErrorIs(t, err, boom)

		got, err := s.GetProject(octx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "abort", got.Title)
	})

	t.Run("schedule set and cleared", func(t *testing.T) {
		u := newUsers(t, ctx, s)
		octx := as(ctx, u.owner)
		p, err := s.CreateProject(octx, u.owner.UserID, newProject("schedule"))
		require.NoError(t, err)

		start := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
		schedule := []domain.ScheduleEntry{{TaskID: "t1", StartDate: start, EndDate: start.AddDate(0, 0, 2)}}
		updated, err := s.UpdateProject(octx, p.ID, domain.ProjectPatch{Schedule: &schedule}, u.owner.UserID, nil)
		require.NoError(t, err)
		require.Len(t, updated.Schedule, 1)
		assert.Equal(t, "t1", updated.Schedule[0].TaskID)

		empty := []domain.ScheduleEntry{}
		updated, err = s.UpdateProject(octx, p.ID, domain.ProjectPatch{Schedule: &empty}, u.owner.UserID, nil)
		require.NoError(t, err)
		assert.Empty(t, updated.Schedule)
	})

	t.Run("clearing tasks keeps an empty list", func(t *testing.T) {
		u := newUsers(t, ctx, s)
		octx := as(ctx, u.owner)
		p, err := s.CreateProject(octx, u.owner.UserID, newProject("no tasks"))
		require.NoError(t, err)

		none := []domain.Task{}
		updated, err := s.UpdateProject(octx, p.ID, domain.ProjectPatch{Tasks: &none}, u.owner.UserID, nil)
		require.NoError(t, err)
		got, err := s.GetProject(octx, p.ID)
		require.NoError(t, err)

		for _, proj := range []*domain.Project{updated, got} {
			body, err := json.Marshal(proj)
			require.NoError(t, err)
			assert.Contains(t, string(body), `"tasks":[]`)
		}
	})

	t.Run("update missing project", func(t *testing.T) {
		u := newUsers(t, ctx, s)
		title := "x"
		_, err := s.UpdateProject(as(ctx, u.owner), uuid.NewString(), domain.ProjectPatch{Title: &title}, u.owner.UserID, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("membership rules", func(t *testing.T) {
		u := newUsers(t, ctx, s)
		octx := as(ctx, u.owner)
		p, err := s.CreateProject(octx, u.owner.UserID, newProject("members"))
		require.NoError(t, err)

		m, err := s.AddMember(octx, p.ID, u.editor.UserID, domain.RoleEditor)
		require.NoError(t, err)
		assert.Equal(t, u.editor.Email, m.Email)
		assert.Equal(t, domain.RoleEditor, m.Role)

		_, err = s.AddMember(octx, p.ID, u.viewer.UserID, domain.RoleViewer)
		require.NoError(t, err)

		_, err = s.AddMember(octx, p.ID, u.editor.UserID, domain.RoleViewer)
		assert.ErrorIs(t, err, domain.ErrDuplicateMember)

		_, err = s.AddMember(octx, p.ID, u.stranger.UserID, domain.RoleOwner)
		assert.ErrorIs(t, err, domain.ErrOwnerProtected)

		_, err = s.AddMember(octx, p.ID, "nobody-"+uuid.NewString()[:8], domain.RoleViewer)
		assert.ErrorIs(t, err, domain.ErrMemberNotFound)

		members, err := s.ListMembers(octx, p.ID)
		require.NoError(t, err)
		require.Len(t, members, 3)
		assert.Equal(t, []string{u.owner.UserID, u.editor.UserID, u.viewer.UserID},
			[]string{members[0].UserID, members[1].UserID, members[2].UserID})
		assert.Equal(t, domain.RoleEditor, members[1].Role)

		err = s.RemoveMember(octx, p.ID, u.owner.UserID)
		assert.ErrorIs(t, err, domain.ErrOwnerProtected)

		require.NoError(t, s.RemoveMember(octx, p.ID, u.viewer.UserID))
		require.NoError(t, s.RemoveMember(octx, p.ID, u.viewer.UserID))
		require.NoError(t, s.RemoveMember(octx, p.ID, u.stranger.UserID))

		role, err := s.GetRole(octx, p.ID, u.viewer.UserID)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleNone, role)

		members, err = s.ListMembers(octx, p.ID)
		require.NoError(t, err)
		assert.Len(t, members, 2)
		assert.Equal(t, 1, countOwners(members))
	})

	t.Run("list owned and shared", func(t *testing.T) {
		u := newUsers(t, ctx, s)
		mine, err := s.CreateProject(as(ctx, u.owner), u.owner.UserID, newProject("mine"))
		require.NoError(t, err)
		shared, err := s.CreateProject(as(ctx, u.editor), u.editor.UserID, newProject("shared"))
		require.NoError(t, err)
		_, err = s.CreateProject(as(ctx, u.viewer), u.viewer.UserID, newProject("hidden"))
		require.NoError(t, err)

		_, err = s.AddMember(as(ctx, u.editor), shared.ID, u.owner.UserID, domain.RoleViewer)
		require.NoError(t, err)

		// touch mine so it sorts first
		goal := "bumped"
		_, err = s.UpdateProject(as(ctx, u.owner), mine.ID, domain.ProjectPatch{Goal: &goal}, u.owner.UserID, nil)
		require.NoError(t, err)

		projects, err := s.ListProjects(as(ctx, u.owner), u.owner.UserID)
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, mine.ID, projects[0].ID)
		assert.Equal(t, shared.ID, projects[1].ID)
	})

	t.Run("delete cascades memberships", func(t *testing.T) {
		u := newUsers(t, ctx, s)
		octx := as(ctx, u.owner)
		p, err := s.CreateProject(octx, u.owner.UserID, newProject("doomed"))
		require.NoError(t, err)
		_, err = s.AddMember(octx, p.ID, u.editor.UserID, domain.RoleEditor)
		require.NoError(t, err)

		boom := errors.New("publish failed")
		err = s.DeleteProject(octx, p.ID, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		_, err = s.GetProject(octx, p.ID)
		require.NoError(t, err)

		hooked := false
		require.NoError(t, s.DeleteProject(octx, p.ID, func(context.Context) error {
			hooked = true
			return nil
		}))
		assert.True(t, hooked)

		_, err = s.GetProject(octx, p.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		members, err := s.ListMembers(octx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, members)

		err = s.DeleteProject(octx, p.ID, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("find user by email", func(t *testing.T) {
		u := newUsers(t, ctx, s)
		id, err := s.FindUserByEmail(ctx, " "+u.viewer.Email+" ")
		require.NoError(t, err)
		assert.Equal(t, u.viewer.UserID, id)

		_, err = s.FindUserByEmail(ctx, "missing-"+uuid.NewString()[:8]+"@example.com")
		assert.ErrorIs(t, err, domain.ErrMemberNotFound)
	})
}
