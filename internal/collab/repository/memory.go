package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

type memoryMember struct {
	role     domain.Role
	joinedAt time.Time
	seq      uint64
}

// MemoryStore keeps everything in process memory. A single mutex serializes
// writes, which also serializes each update with its hook.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]string // id -> email
	projects map[string]*domain.Project
	members  map[string]map[string]*memoryMember // project -> user -> row
	seq      uint64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]string),
		projects: make(map[string]*domain.Project),
		members:  make(map[string]map[string]*memoryMember),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) EnsureUser(ctx context.Context, id domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.Email != "" || s.users[id.UserID] == "" {
		s.users[id.UserID] = strings.TrimSpace(id.Email)
	}
	return nil
}

func (s *MemoryStore) CreateProject(ctx context.Context, ownerID string, np domain.NewProject) (*domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[ownerID]; !ok {
		return nil, domain.ErrNotFound
	}

	now := s.now()
	p := &domain.Project{
		ID:             uuid.NewString(),
		Title:          np.Title,
		Goal:           np.Goal,
		TargetDate:     np.TargetDate,
		Tasks:          append([]domain.Task{}, np.Tasks...),
		OwnerID:        ownerID,
		LastModifiedBy: ownerID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if np.Schedule != nil {
		p.Schedule = append([]domain.ScheduleEntry(nil), np.Schedule...)
	}

	// project and owner row appear together under the lock
	s.projects[p.ID] = p
	s.seq++
	s.members[p.ID] = map[string]*memoryMember{
		ownerID: {role: domain.RoleOwner, joinedAt: now, seq: s.seq},
	}
	return cloneProject(p), nil
}

func (s *MemoryStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProject(p), nil
}

func (s *MemoryStore) UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch, modifiedBy string, hook UpdateHook) (*domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	next := cloneProject(cur)
	patch.Apply(next)
	next.LastModifiedBy = modifiedBy
	next.UpdatedAt = s.now()

	if hook != nil {
		if err := hook(ctx, cloneProject(next)); err != nil {
			return nil, err
		}
	}
	s.projects[id] = next
	return cloneProject(next), nil
}

func (s *MemoryStore) DeleteProject(ctx context.Context, id string, hook DeleteHook) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return domain.ErrNotFound
	}
	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	delete(s.projects, id)
	delete(s.members, id)
	return nil
}

func (s *MemoryStore) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Project, 0, 16)
	for id, p := range s.projects {
		_, member := s.members[id][userID]
		if p.OwnerID == userID || member {
			out = append(out, *cloneProject(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) GetRole(ctx context.Context, projectID, userID string) (domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return domain.RoleNone, domain.Unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.members[projectID][userID]; ok {
		return m.role, nil
	}
	return domain.RoleNone, nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, projectID string) ([]domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.members[projectID]
	seqs := make(map[string]uint64, len(rows))
	out := make([]domain.Member, 0, len(rows))
	for userID, m := range rows {
		out = append(out, domain.Member{
			ProjectID: projectID,
			UserID:    userID,
			Email:     s.users[userID],
			Role:      m.role,
			JoinedAt:  m.joinedAt,
		})
		seqs[userID] = m.seq
	}
	sort.Slice(out, func(i, j int) bool { return seqs[out[i].UserID] < seqs[out[j].UserID] })
	return out, nil
}

func (s *MemoryStore) AddMember(ctx context.Context, projectID, userID string, role domain.Role) (*domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, domain.ErrNotFound
	}
	email, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	if _, exists := s.members[projectID][userID]; exists {
		return nil, domain.ErrDuplicateMember
	}
	if role == domain.RoleOwner {
		return nil, domain.ErrOwnerProtected
	}

	s.seq++
	m := &memoryMember{role: role, joinedAt: s.now(), seq: s.seq}
	s.members[projectID][userID] = m
	return &domain.Member{ProjectID: projectID, UserID: userID, Email: email, Role: role, JoinedAt: m.joinedAt}, nil
}

func (s *MemoryStore) RemoveMember(ctx context.Context, projectID, userID string) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[projectID][userID]
	if !ok {
		return nil
	}
	if m.role == domain.RoleOwner {
		return domain.ErrOwnerProtected
	}
	delete(s.members[projectID], userID)
	return nil
}

// FindUserByEmail looks a user up in the local directory.
func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.Unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, e := range s.users {
		if strings.EqualFold(e, strings.TrimSpace(email)) {
			return id, nil
		}
	}
	return "", domain.ErrMemberNotFound
}
