package http

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-collab/internal/auth"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/repository"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/service"
	"github.com/GoSim-25-26J-441/project-collab/internal/realtime"
)

// switchableStore fails GetProject with err while it is set.
type switchableStore struct {
	*repository.MemoryStore
	mu  sync.Mutex
	err error
}

func (s *switchableStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *switchableStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryStore.GetProject(ctx, id)
}

func TestResync(t *testing.T) {
	alice := domain.Identity{UserID: "alice", Email: "a@example.com"}
	bob := domain.Identity{UserID: "bob", Email: "b@example.com"}

	mem := repository.NewMemoryStore()
	store := &switchableStore{MemoryStore: mem}
	identity := auth.NewDirectoryProvider(map[string]string{bob.Email: bob.UserID}, mem)
	svc := service.New(store, mem, identity, realtime.NewMemoryBroker(zap.NewNop(), 8), zap.NewNop())
	h := New(svc, 0, zap.NewNop())

	p, err := svc.CreateProject(auth.WithIdentity(context.Background(), alice), domain.NewProject{
		Title:      "Launch",
		TargetDate: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = svc.AddMember(auth.WithIdentity(context.Background(), alice), p.ID, bob.Email, domain.RoleViewer)
	require.NoError(t, err)

	resync := func(id domain.Identity) (bool, bool, string) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil).
			WithContext(auth.WithIdentity(context.Background(), id))
		var lagged atomic.Bool
		open := h.resync(c, p.ID, &lagged)
		return open, lagged.Load(), w.Body.String()
	}

	t.Run("sends current record", func(t *testing.T) {
		open, lagged, body := resync(bob)
		assert.True(t, open)
		assert.False(t, lagged)
		assert.Contains(t, body, "event: update")
		assert.Contains(t, body, `"title":"Launch"`)
	})

	t.Run("store unavailable keeps the stream and retries", func(t *testing.T) {
		store.fail(domain.Unavailable(errors.New("connection reset")))
		defer store.fail(nil)

		open, lagged, body := resync(bob)
		assert.True(t, open)
		assert.True(t, lagged, "the next tick retries")
		assert.NotContains(t, body, "event: deleted")
		assert.NotContains(t, body, "event: update")
	})

	t.Run("project gone", func(t *testing.T) {
		store.fail(domain.ErrNotFound)
		defer store.fail(nil)

		open, _, body := resync(bob)
		assert.False(t, open)
		assert.Contains(t, body, "event: deleted")
	})

	t.Run("other failures close with an error event", func(t *testing.T) {
		store.fail(domain.ErrInvalidInput)
		defer store.fail(nil)

		open, lagged, body := resync(bob)
		assert.False(t, open)
		assert.False(t, lagged)
		assert.Contains(t, body, "event: error")
		assert.NotContains(t, body, "event: deleted")
	})

	t.Run("access removed", func(t *testing.T) {
		require.NoError(t, svc.RemoveMember(auth.WithIdentity(context.Background(), alice), p.ID, bob.UserID))

		open, _, body := resync(bob)
		assert.False(t, open)
		assert.Contains(t, body, "event: revoked")
		assert.NotContains(t, body, "event: deleted")
		assert.NotContains(t, body, "Launch")
	})
}

func TestStreamClosesWhenMemberRemoved(t *testing.T) {
	env := setupRouter(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	id := env.createProject(t, "alice")
	res := env.do(t, "alice", http.MethodPost, "/api/v1/projects/"+id+"/members", gin.H{"email": "b@example.com", "role": "viewer"})
	require.Equal(t, http.StatusCreated, res.Status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/projects/"+id+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-Id", "bob")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	name, _ := readEvent(t, reader)
	require.Equal(t, "initial", name)

	res = env.do(t, "alice", http.MethodDelete, "/api/v1/projects/"+id+"/members/bob", nil)
	require.Equal(t, http.StatusOK, res.Status)
	res = env.do(t, "alice", http.MethodPatch, "/api/v1/projects/"+id, gin.H{"goal": "secret plan"})
	require.Equal(t, http.StatusOK, res.Status)

	name, data := readEvent(t, reader)
	assert.Equal(t, "revoked", name)
	assert.NotContains(t, data, "secret plan")
}
