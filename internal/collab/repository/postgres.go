package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInsufficientPriv    = "42501"
	pgOwnerProtected      = "CO001" // raised by collab_protect_owner()
)

const projectColumns = `id::text, title, goal, target_date, tasks, schedule, owner_id, last_modified_by, created_at, updated_at`

// PostgresStore persists projects and memberships in Postgres. Every call runs
// in a transaction scoped to the acting user (app.user_id) so the row-level
// security policies installed by the migrations apply as a second line of
// defence behind the service's own checks.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// withTx begins a transaction bound to the caller in ctx, runs fn, and commits
// on success or rolls back on error/panic. Panics are rethrown.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapError(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return
		}
		err = mapError(tx.Commit(ctx))
	}()

	if _, err = tx.Exec(ctx, `select set_config('app.user_id', $1, true)`, domain.CallerID(ctx)); err != nil {
		return mapError(err)
	}
	return fn(tx)
}

func (s *PostgresStore) EnsureUser(ctx context.Context, id domain.Identity) error {
	if id.UserID == "" {
		return fmt.Errorf("%w: user id required", domain.ErrInvalidInput)
	}

	const q = `
insert into users (id, email, updated_at)
values ($1, coalesce(nullif($2, ''), ''), now())
on conflict (id) do update
set
  email = coalesce(nullif(excluded.email, ''), users.email),
  updated_at = now();
`
	_, err := s.db.Exec(ctx, q, id.UserID, strings.TrimSpace(id.Email))
	return mapError(err)
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (string, error) {
	const q = `select id from users where lower(email) = lower($1) order by created_at limit 1;`

	var id string
	err := s.db.QueryRow(ctx, q, strings.TrimSpace(email)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrMemberNotFound
	}
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

// CreateProject inserts the project and its owner membership in one
// transaction; neither row is visible without the other.
func (s *PostgresStore) CreateProject(ctx context.Context, ownerID string, np domain.NewProject) (*domain.Project, error) {
	tasks, schedule, err := encodeContent(np.Tasks, np.Schedule)
	if err != nil {
		return nil, err
	}

	const insertProject = `
insert into projects (id, owner_id, title, goal, target_date, tasks, schedule, last_modified_by)
values ($1::uuid, $2, $3, $4, $5, $6, $7, $2)
returning ` + projectColumns + `;`

	const insertOwner = `
insert into project_members (project_id, user_id, role)
values ($1::uuid, $2, 'owner');`

	var created *domain.Project
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := scanProject(tx.QueryRow(ctx, insertProject,
			uuid.NewString(), ownerID, np.Title, np.Goal, np.TargetDate, tasks, schedule))
		if err != nil {
			return mapError(err)
		}
		if _, err := tx.Exec(ctx, insertOwner, p.ID, ownerID); err != nil {
			return mapError(err)
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}

	const q = `select ` + projectColumns + ` from projects where id = $1::uuid;`

	var p *domain.Project
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, err = scanProject(tx.QueryRow(ctx, q, id))
		return mapError(err)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProject writes only the fields present in patch and always stamps
// last_modified_by and updated_at. The row stays locked until hook returns, so
// hooks of concurrent updates to one project run in write order.
func (s *PostgresStore) UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch, modifiedBy string, hook UpdateHook) (*domain.Project, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}

	sets := []string{"last_modified_by = $2", "updated_at = now()"}
	args := []any{id, modifiedBy}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Goal != nil {
		set("goal", *patch.Goal)
	}
	if patch.TargetDate != nil {
		set("target_date", *patch.TargetDate)
	}
	if patch.Tasks != nil {
		raw, err := json.Marshal(nonNilTasks(*patch.Tasks))
		if err != nil {
			return nil, fmt.Errorf("%w: tasks: %v", domain.ErrInvalidInput, err)
		}
		set("tasks", raw)
	}
	if patch.Schedule != nil {
		var raw []byte
		if len(*patch.Schedule) > 0 {
			var err error
			if raw, err = json.Marshal(*patch.Schedule); err != nil {
				return nil, fmt.Errorf("%w: schedule: %v", domain.ErrInvalidInput, err)
			}
		}
		set("schedule", raw)
	}

	q := `update projects set ` + strings.Join(sets, ", ") +
		` where id = $1::uuid returning ` + projectColumns + `;`

	var updated *domain.Project
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := scanProject(tx.QueryRow(ctx, q, args...))
		if err != nil {
			return mapError(err)
		}
		if hook != nil {
			if err := hook(ctx, cloneProject(p)); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteProject removes the project; memberships go with it through the
// foreign key's on delete cascade.
func (s *PostgresStore) DeleteProject(ctx context.Context, id string, hook DeleteHook) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}

	const q = `delete from projects where id = $1::uuid;`

	return s.withTx(ctx, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, q, id)
		if err != nil {
			return mapError(err)
		}
		if ct.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		if hook != nil {
			return hook(ctx)
		}
		return nil
	})
}

// ListProjects returns projects the user owns or is a member of, most
// recently updated first.
func (s *PostgresStore) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	const q = `
select ` + projectColumns + `
from projects p
where p.owner_id = $1
   or exists (select 1 from project_members m where m.project_id = p.id and m.user_id = $1)
order by p.updated_at desc, p.id;
`
	out := make([]domain.Project, 0, 16)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, q, userID)
		if err != nil {
			return mapError(err)
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanProject(rows)
			if err != nil {
				return mapError(err)
			}
			out = append(out, *p)
		}
		return mapError(rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) GetRole(ctx context.Context, projectID, userID string) (domain.Role, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return domain.RoleNone, nil
	}

	const q = `select role from project_members where project_id = $1::uuid and user_id = $2;`

	role := domain.RoleNone
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var name string
		err := tx.QueryRow(ctx, q, projectID, userID).Scan(&name)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return mapError(err)
		}
		role, err = domain.ParseRole(name)
		return err
	})
	if err != nil {
		return domain.RoleNone, err
	}
	return role, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, projectID string) ([]domain.Member, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, domain.ErrNotFound
	}

	const q = `
select m.project_id::text, m.user_id, coalesce(u.email, ''), m.role, m.joined_at
from project_members m
left join users u on u.id = m.user_id
where m.project_id = $1::uuid
order by m.joined_at asc, m.user_id;
`
	out := make([]domain.Member, 0, 8)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, q, projectID)
		if err != nil {
			return mapError(err)
		}
		defer rows.Close()

		for rows.Next() {
			var m domain.Member
			var role string
			if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Email, &role, &m.JoinedAt); err != nil {
				return mapError(err)
			}
			if m.Role, err = domain.ParseRole(role); err != nil {
				return err
			}
			out = append(out, m)
		}
		return mapError(rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddMember relies on the (project_id, user_id) primary key, so of two
// concurrent inserts for the same pair one fails with ErrDuplicateMember.
func (s *PostgresStore) AddMember(ctx context.Context, projectID, userID string, role domain.Role) (*domain.Member, error) {
	if role == domain.RoleOwner {
		return nil, domain.ErrOwnerProtected
	}
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, domain.ErrNotFound
	}

	const q = `
with inserted as (
  insert into project_members (project_id, user_id, role)
  values ($1::uuid, $2, $3)
  returning project_id, user_id, role, joined_at
)
select i.project_id::text, i.user_id, coalesce(u.email, ''), i.role, i.joined_at
from inserted i
left join users u on u.id = i.user_id;
`
	var m domain.Member
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var name string
		err := tx.QueryRow(ctx, q, projectID, userID, role.String()).
			Scan(&m.ProjectID, &m.UserID, &m.Email, &name, &m.JoinedAt)
		if err != nil {
			return mapError(err)
		}
		m.Role, err = domain.ParseRole(name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RemoveMember deletes a non-owner membership. Removing a membership that does
// not exist succeeds; removing the owner's fails with ErrOwnerProtected.
func (s *PostgresStore) RemoveMember(ctx context.Context, projectID, userID string) error {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil
	}

	const del = `delete from project_members where project_id = $1::uuid and user_id = $2 and role <> 'owner';`
	const isOwner = `select exists (select 1 from project_members where project_id = $1::uuid and user_id = $2 and role = 'owner');`

	return s.withTx(ctx, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, del, projectID, userID)
		if err != nil {
			return mapError(err)
		}
		if ct.RowsAffected() > 0 {
			return nil
		}
		var owner bool
		if err := tx.QueryRow(ctx, isOwner, projectID, userID).Scan(&owner); err != nil {
			return mapError(err)
		}
		if owner {
			return domain.ErrOwnerProtected
		}
		return nil
	})
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	var tasksRaw, scheduleRaw []byte
	if err := row.Scan(&p.ID, &p.Title, &p.Goal, &p.TargetDate, &tasksRaw, &scheduleRaw,
		&p.OwnerID, &p.LastModifiedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Tasks = []domain.Task{}
	if len(tasksRaw) > 0 {
		if err := json.Unmarshal(tasksRaw, &p.Tasks); err != nil {
			return nil, fmt.Errorf("decode tasks: %w", err)
		}
	}
	if len(scheduleRaw) > 0 {
		if err := json.Unmarshal(scheduleRaw, &p.Schedule); err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
	}
	p.TargetDate = dateOnly(p.TargetDate)
	return &p, nil
}

func encodeContent(tasks []domain.Task, schedule []domain.ScheduleEntry) ([]byte, []byte, error) {
	tasksRaw, err := json.Marshal(nonNilTasks(tasks))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: tasks: %v", domain.ErrInvalidInput, err)
	}
	if len(schedule) == 0 {
		return tasksRaw, nil, nil
	}
	scheduleRaw, err := json.Marshal(schedule)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: schedule: %v", domain.ErrInvalidInput, err)
	}
	return tasksRaw, scheduleRaw, nil
}

func nonNilTasks(tasks []domain.Task) []domain.Task {
	if tasks == nil {
		return []domain.Task{}
	}
	return tasks
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// mapError translates driver errors into domain errors. Anything that is not a
// constraint or policy outcome is a collaborator failure.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return domain.ErrDuplicateMember
		case pgForeignKeyViolation:
			if pgErr.ConstraintName == "project_members_user_id_fkey" {
				return domain.ErrMemberNotFound
			}
			return domain.ErrNotFound
		case pgOwnerProtected:
			return domain.ErrOwnerProtected
		case pgInsufficientPriv:
			return fmt.Errorf("%w: %s", domain.ErrNotAuthorized, pgErr.Message)
		}
	}
	return domain.Unavailable(err)
}
