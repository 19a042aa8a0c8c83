// Package sprint defines the Sprint domain entity and its lifecycle.
package sprint

import (
	"time"

	"github.com/scrumix/scrumix/internal/domain"
)

// Status is the lifecycle state of a sprint.
type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ValidStatuses is the set of accepted sprint statuses.
var ValidStatuses = map[Status]bool{
	StatusPlanning:  true,
	StatusActive:    true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// Sprint is a time-boxed iteration of a project.
type Sprint struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Name           string    `json:"name"`
	Goal           string    `json:"goal"`
	Status         Status    `json:"status"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	Capacity       int       `json:"capacity"`
	VelocityPoints int       `json:"velocity_points"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Days returns the number of calendar days (UTC) from the start date to the
// end date, at least one. Clock times are ignored.
func (s *Sprint) Days() int {
	d := int(midnight(s.EndDate).Sub(midnight(s.StartDate)).Hours() / 24)
	if d < 1 {
		return 1
	}
	return d
}

func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreateRequest holds the fields needed to create a sprint.
type CreateRequest struct {
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Goal      string    `json:"goal"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Capacity  int       `json:"capacity"`
}

// Validate checks required fields and the date range.
func (r *CreateRequest) Validate() error {
	if r.ProjectID == "" {
		return domain.Invalid("project_id is required")
	}
	if r.Name == "" {
		return domain.Invalid("name is required")
	}
	if len(r.Name) > 255 {
		return domain.Invalid("name exceeds 255 characters")
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return domain.Invalid("start_date and end_date are required")
	}
	if !r.EndDate.After(r.StartDate) {
		return domain.Invalid("end_date must be after start_date")
	}
	if r.Capacity < 0 {
		return domain.Invalid("capacity must be >= 0")
	}
	return nil
}

// UpdateRequest holds optional fields for a partial sprint update.
// Status changes go through Start, Complete and Cancel.
type UpdateRequest struct {
	Name      *string    `json:"name,omitempty"`
	Goal      *string    `json:"goal,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Capacity  *int       `json:"capacity,omitempty"`
}

// Apply copies the set fields onto s and validates the result.
func (r *UpdateRequest) Apply(s *Sprint) error {
	if r.Name != nil {
		if *r.Name == "" {
			return domain.Invalid("name cannot be empty")
		}
		s.Name = *r.Name
	}
	if r.Goal != nil {
		s.Goal = *r.Goal
	}
	if r.StartDate != nil {
		s.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		s.EndDate = *r.EndDate
	}
	if r.Capacity != nil {
		if *r.Capacity < 0 {
			return domain.Invalid("capacity must be >= 0")
		}
		s.Capacity = *r.Capacity
	}
	if !s.EndDate.After(s.StartDate) {
		return domain.Invalid("end_date must be after start_date")
	}
	return nil
}

var transitions = map[Status][]Status{
	StatusPlanning: {StatusActive, StatusCancelled},
	StatusActive:   {StatusCompleted, StatusCancelled},
}

// ValidateTransition checks that a sprint may move from one status to another.
func ValidateTransition(from, to Status) error {
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return domain.Invalid("cannot move sprint from %s to %s", from, to)
}

// PointAdjustment is a signed change to a sprint's velocity counter.
type PointAdjustment struct {
	SprintID string `json:"sprint_id"`
	Delta    int    `json:"delta"`
}

// Filter narrows a sprint listing.
type Filter struct {
	ProjectID string
	Status    Status
	domain.Page
}

// Stats summarizes the backlog committed to a sprint.
type Stats struct {
	SprintID        string         `json:"sprint_id"`
	ItemCount       int            `json:"item_count"`
	ItemsByStatus   map[string]int `json:"items_by_status"`
	TotalPoints     int            `json:"total_story_points"`
	CompletedPoints int            `json:"completed_story_points"`
	VelocityPoints  int            `json:"velocity_points"`
	Capacity        int            `json:"capacity"`
	DaysRemaining   int            `json:"days_remaining"`
}
