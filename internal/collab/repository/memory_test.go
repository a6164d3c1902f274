package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore())
}

func TestMemoryStore_UnknownProject(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, domain.Identity{UserID: "u1", Email: "u1@example.com"}))

	_, err := s.AddMember(ctx, "missing", "u1", domain.RoleViewer)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	role, err := s.GetRole(ctx, "missing", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleNone, role)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, domain.Identity{UserID: "u1"}))

	p, err := s.CreateProject(ctx, "u1", newProject("copy"))
	require.NoError(t, err)
	p.Tasks[0].Title = "mutated"
	p.Title = "mutated"

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "copy", got.Title)
	assert.Equal(t, "first", got.Tasks[0].Title)
}

func TestMemoryStore_Clock(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, domain.Identity{UserID: "u1"}))

	p, err := s.CreateProject(ctx, "u1", newProject("clock"))
	require.NoError(t, err)
	assert.Equal(t, now, p.CreatedAt)

	now = now.Add(time.Hour)
	title := "later"
	p, err = s.UpdateProject(ctx, p.ID, domain.ProjectPatch{Title: &title}, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, now, p.UpdatedAt)
	assert.Equal(t, now.Add(-time.Hour), p.CreatedAt)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetProject(ctx, "any")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestMemoryStore_ConcurrentAddMember(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, domain.Identity{UserID: "owner"}))
	require.NoError(t, s.EnsureUser(ctx, domain.Identity{UserID: "guest"}))
	p, err := s.CreateProject(ctx, "owner", newProject("race"))
	require.NoError(t, err)

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddMember(ctx, p.ID, "guest", domain.RoleViewer)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDuplicateMember):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}
