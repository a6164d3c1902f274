package domain

import "time"

// Task is a single entry of a project's ordered task list.
type Task struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Completed    bool   `json:"completed"`
	EstimateDays int    `json:"estimate_days,omitempty"`
}

// ScheduleEntry is derived planning data placing a task on the calendar.
type ScheduleEntry struct {
	TaskID    string    `json:"task_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Project is the shared record collaborators edit.
// OwnerID is set at creation and never changes.
type Project struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Goal           string          `json:"goal"`
	TargetDate     time.Time       `json:"target_date"`
	Tasks          []Task          `json:"tasks"`
	Schedule       []ScheduleEntry `json:"schedule,omitempty"`
	OwnerID        string          `json:"user_id"`
	LastModifiedBy string          `json:"last_modified_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewProject holds the caller-supplied fields of a project being created.
type NewProject struct {
	Title      string
	Goal       string
	TargetDate time.Time
	Tasks      []Task
	Schedule   []ScheduleEntry
}

// ProjectPatch is a partial update. Nil fields are left untouched.
// A non-nil Schedule pointing at an empty slice clears the schedule.
type ProjectPatch struct {
	Title      *string          `json:"title,omitempty"`
	Goal       *string          `json:"goal,omitempty"`
	TargetDate *time.Time       `json:"target_date,omitempty"`
	Tasks      *[]Task          `json:"tasks,omitempty"`
	Schedule   *[]ScheduleEntry `json:"schedule,omitempty"`
}

// Apply copies the present fields of the patch onto p.
func (pt ProjectPatch) Apply(p *Project) {
	if pt.Title != nil {
		p.Title = *pt.Title
	}
	if pt.Goal != nil {
		p.Goal = *pt.Goal
	}
	if pt.TargetDate != nil {
		p.TargetDate = *pt.TargetDate
	}
	if pt.Tasks != nil {
		p.Tasks = make([]Task, len(*pt.Tasks))
		copy(p.Tasks, *pt.Tasks)
	}
	if pt.Schedule != nil {
		p.Schedule = make([]ScheduleEntry, len(*pt.Schedule))
		copy(p.Schedule, *pt.Schedule)
	}
}

// Member is a membership row joined with the member's email.
type Member struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Identity is the authenticated caller as reported by the identity provider.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
