// Package repository persists projects, memberships and the user directory.
//
// Both implementations enforce the membership invariants themselves: one row
// per (project, user), exactly one owner row per project created together with
// the project, owner rows immune to member management, and memberships removed
// with their project.
package repository

import (
	"context"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

// UpdateHook runs after an update is written but before it becomes visible.
// Returning an error aborts the write. A commit that fails after the hook
// returned leaves whatever the hook published without a matching write.
type UpdateHook func(ctx context.Context, p *domain.Project) error

// DeleteHook runs after a delete is written but before it becomes visible.
type DeleteHook func(ctx context.Context) error

func cloneProject(p *domain.Project) *domain.Project {
	if p == nil {
		return nil
	}
	out := *p
	if p.Tasks != nil {
		out.Tasks = make([]domain.Task, len(p.Tasks))
		copy(out.Tasks, p.Tasks)
	}
	if p.Schedule != nil {
		out.Schedule = make([]domain.ScheduleEntry, len(p.Schedule))
		copy(out.Schedule, p.Schedule)
	}
	return &out
}
