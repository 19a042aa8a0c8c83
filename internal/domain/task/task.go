// Package task defines the Task domain entity.
package task

import (
	"time"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/user"
)

// Status represents the current state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// ValidStatuses is the set of accepted task statuses.
var ValidStatuses = map[Status]bool{
	StatusTodo:       true,
	StatusInProgress: true,
	StatusDone:       true,
	StatusCancelled:  true,
}

// Priority of a task.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// ValidPriorities is the set of accepted task priorities.
var ValidPriorities = map[Priority]bool{
	PriorityCritical: true,
	PriorityHigh:     true,
	PriorityMedium:   true,
	PriorityLow:      true,
}

// Task is a concrete piece of work under a backlog item.
type Task struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	BacklogID   string         `json:"backlog_id"`
	SprintID    *string        `json:"sprint_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	Priority    Priority       `json:"priority"`
	DueDate     *time.Time     `json:"due_date"`
	Assignees   []user.Summary `json:"assignees"`
	Tags        []string       `json:"tags"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a new task.
type CreateRequest struct {
	BacklogID   string     `json:"backlog_id"`
	SprintID    *string    `json:"sprint_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssigneeIDs []string   `json:"assignee_ids,omitempty"`
}

// Validate applies defaults and checks required fields.
func (r *CreateRequest) Validate() error {
	if r.Status == "" {
		r.Status = StatusTodo
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if r.BacklogID == "" {
		return domain.Invalid("backlog_id is required")
	}
	if r.Title == "" {
		return domain.Invalid("title is required")
	}
	if len(r.Title) > 500 {
		return domain.Invalid("title exceeds 500 characters")
	}
	return validateEnums(r.Status, r.Priority)
}

// UpdateRequest holds optional fields for a partial task update.
// An empty SprintID removes the task from its sprint.
type UpdateRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	SprintID    *string    `json:"sprint_id,omitempty"`
}

// Apply copies the set fields onto t and validates the result.
func (r *UpdateRequest) Apply(t *Task) error {
	if r.Title != nil {
		if *r.Title == "" {
			return domain.Invalid("title cannot be empty")
		}
		t.Title = *r.Title
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Status != nil {
		t.Status = *r.Status
	}
	if r.Priority != nil {
		t.Priority = *r.Priority
	}
	if r.DueDate != nil {
		t.DueDate = r.DueDate
	}
	if r.SprintID != nil {
		if *r.SprintID == "" {
			t.SprintID = nil
		} else {
			id := *r.SprintID
			t.SprintID = &id
		}
	}
	return validateEnums(t.Status, t.Priority)
}

func validateEnums(s Status, p Priority) error {
	if !ValidStatuses[s] {
		return domain.Invalid("invalid status %q", s)
	}
	if !ValidPriorities[p] {
		return domain.Invalid("invalid priority %q", p)
	}
	return nil
}

// AssignRequest names the users to add to or remove from a task.
type AssignRequest struct {
	UserIDs []string `json:"user_ids"`
}

// Filter narrows a task listing.
type Filter struct {
	ProjectID string
	BacklogID string
	SprintID  string
	TagID     string
	Status    Status
	Search    string
	domain.Page
}

// Stats summarizes tasks of a project.
type Stats struct {
	ProjectID string         `json:"project_id"`
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	Overdue   int            `json:"overdue"`
}
